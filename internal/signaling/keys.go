package signaling

import "fmt"

// Presence key layout (spec.md §6). devices:online is a single hash keyed
// by device ID rather than one key per device, so "which devices are
// online" never needs a Scan.
const devicesOnlineHashKey = "devices:online"

func capabilitiesKey(deviceID string) string {
	return fmt.Sprintf("device:capabilities:%s", deviceID)
}

func presenceKey(deviceID string) string {
	return fmt.Sprintf("device:presence:%s", deviceID)
}

func sessionKey(sessionID string) string {
	return fmt.Sprintf("session:%s", sessionID)
}

func proxyResponseKey(rid string) string {
	return fmt.Sprintf("proxy:response:%s", rid)
}

const proxyResponseTTLSeconds = 30
