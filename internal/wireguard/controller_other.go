//go:build !linux

package wireguard

import "log/slog"

// NetlinkController is unavailable off Linux; every call returns ErrUnsupported.
type NetlinkController struct {
	logger *slog.Logger
}

// NewNetlinkController returns a controller whose methods fail with ErrUnsupported.
func NewNetlinkController(logger *slog.Logger) *NetlinkController {
	return &NetlinkController{logger: logger}
}

func (c *NetlinkController) ReplacePeers(string, []PeerConfig) error { return ErrUnsupported }

func (c *NetlinkController) Device(string) (*DeviceStatus, error) { return nil, ErrUnsupported }
