package assets

import "fmt"

// Image keys used by the sky engine.
const (
	KeyStars = "stars"

	KeySkyWinter   = "sky_winter"
	KeySkySpring   = "sky_spring"
	KeySkySummer   = "sky_summer"
	KeySkyFall     = "sky_fall"
	KeySkyOvercast = "sky_overcast"
	KeySkyStormy   = "sky_stormy"

	KeyShaderWinter   = "shader_winter"
	KeyShaderSpring   = "shader_spring"
	KeyShaderSummer   = "shader_summer"
	KeyShaderFall     = "shader_fall"
	KeyShaderOvercast = "shader_overcast"
	KeyShaderStormy   = "shader_stormy"

	KeyCloudsNear = "clouds_near"
	KeyCloudsMid  = "clouds_mid"
	KeyCloudsFar  = "clouds_far"

	KeyRain = "rain"
	KeySnow = "snow"
)

// LightningFrames is the number of lightning variants.
const LightningFrames = 4

// LightningKey returns the key of lightning variant i.
func LightningKey(i int) string {
	return fmt.Sprintf("lightning_%d", i)
}

// LightningKeys returns the keys of every lightning variant in order.
func LightningKeys() []string {
	keys := make([]string, LightningFrames)
	for i := range keys {
		keys[i] = LightningKey(i)
	}
	return keys
}

// SkyKeys lists every base sky image.
func SkyKeys() []string {
	return []string{KeySkyWinter, KeySkySpring, KeySkySummer, KeySkyFall, KeySkyOvercast, KeySkyStormy}
}

// ShaderKeys lists every recolor mask.
func ShaderKeys() []string {
	return []string{KeyShaderWinter, KeyShaderSpring, KeyShaderSummer, KeyShaderFall, KeyShaderOvercast, KeyShaderStormy}
}

// RequiredKeys lists every key the engine may request.
func RequiredKeys() []string {
	keys := []string{KeyStars, KeyCloudsNear, KeyCloudsMid, KeyCloudsFar, KeyRain, KeySnow}
	keys = append(keys, SkyKeys()...)
	keys = append(keys, ShaderKeys()...)
	return append(keys, LightningKeys()...)
}
