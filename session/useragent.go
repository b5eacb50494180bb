package session

import "strings"

// Device labels.
const (
	Unknown       = "Unknown"
	DeviceDesktop = "Desktop"
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
)

// ParseUserAgent derives a coarse Device from a User-Agent header using
// substring heuristics. Order matters: Edge and Opera UAs also carry
// "Chrome", Chrome UAs also carry "Safari", and Android UAs carry "Linux".
func ParseUserAgent(ua string) Device {
	d := Device{Browser: Unknown, OS: Unknown, DeviceType: DeviceDesktop}

	switch {
	case strings.Contains(ua, "Edg"):
		d.Browser = "Edge"
	case strings.Contains(ua, "OPR") || strings.Contains(ua, "Opera"):
		d.Browser = "Opera"
	case strings.Contains(ua, "Firefox"):
		d.Browser = "Firefox"
	case strings.Contains(ua, "Chrome") || strings.Contains(ua, "CriOS"):
		d.Browser = "Chrome"
	case strings.Contains(ua, "Safari"):
		d.Browser = "Safari"
	}

	switch {
	case strings.Contains(ua, "Windows"):
		d.OS = "Windows"
	case strings.Contains(ua, "iPhone") || strings.Contains(ua, "iPad") || strings.Contains(ua, "iOS"):
		d.OS = "iOS"
	case strings.Contains(ua, "Mac"):
		d.OS = "macOS"
	case strings.Contains(ua, "Android"):
		d.OS = "Android"
	case strings.Contains(ua, "Linux"):
		d.OS = "Linux"
	}

	switch {
	case strings.Contains(ua, "Tablet") || strings.Contains(ua, "iPad"):
		d.DeviceType = DeviceTablet
	case strings.Contains(ua, "Mobile") || strings.Contains(ua, "Android") || strings.Contains(ua, "iPhone"):
		d.DeviceType = DeviceMobile
	}
	return d
}
