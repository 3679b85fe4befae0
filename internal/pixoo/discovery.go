package pixoo

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"
)

// probeTimeout bounds a single discovery probe.
const probeTimeout = 500 * time.Millisecond

// Discovered is a Pixoo found on the local network.
type Discovered struct {
	Name string
	IP   string
}

// ProgressFunc reports scanned and total host counts.
type ProgressFunc func(scanned, total int)

// Scan probes every host of the local /24 for a Pixoo, 50 at a time.
func Scan(ctx context.Context, onProgress ProgressFunc) ([]Discovered, error) {
	subnet, err := localSubnet()
	if err != nil {
		return nil, err
	}
	return scanHosts(ctx, hosts(subnet), probe, onProgress)
}

func hosts(subnet string) []string {
	out := make([]string, 0, 254)
	for i := 1; i <= 254; i++ {
		out = append(out, fmt.Sprintf("%s.%d", subnet, i))
	}
	return out
}

func scanHosts(ctx context.Context, ips []string, probe func(context.Context, string) bool, onProgress ProgressFunc) ([]Discovered, error) {
	const batch = 50

	var (
		found []Discovered
		mu    sync.Mutex
	)
	for start := 0; start < len(ips); start += batch {
		end := min(start+batch, len(ips))

		var wg sync.WaitGroup
		for _, ip := range ips[start:end] {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if probe(ctx, ip) {
					mu.Lock()
					found = append(found, Discovered{Name: "Pixoo", IP: ip})
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		if onProgress != nil {
			onProgress(end, len(ips))
		}
		if err := ctx.Err(); err != nil {
			return found, err
		}
	}

	sort.Slice(found, func(i, j int) bool { return found[i].IP < found[j].IP })
	return found, nil
}

// localSubnet returns the first three octets of the first non-loopback
// IPv4 address, e.g. "192.168.1".
func localSubnet() (string, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return "", fmt.Errorf("failed to get network interfaces: %w", err)
	}

	for _, iface := range interfaces {
		if iface.Flags&net.FlagLoopback != 0 || iface.Flags&net.FlagUp == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipNet.IP.To4()
			if ip == nil || ip.IsLoopback() {
				continue
			}
			return fmt.Sprintf("%d.%d.%d", ip[0], ip[1], ip[2]), nil
		}
	}

	return "", fmt.Errorf("could not determine local network")
}

func probe(ctx context.Context, ip string) bool {
	client := NewClient(ip)
	client.HTTPClient.Timeout = probeTimeout

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	_, err := client.send(ctx, Command{Command: "Channel/GetIndex"})
	return err == nil
}
