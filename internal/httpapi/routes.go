package httpapi

import (
	"fmt"
	"net"
)

func newListener(addr string) (net.Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("httpapi: listen: %w", err)
	}
	return l, nil
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	{
		api.POST("/devices/register", s.handleRegisterDevice)
		api.POST("/pairing/generate", s.handleGeneratePairingCode)
		api.POST("/devices/pair", s.requireBearerToken, s.handleRedeemPairingCode)
		api.GET("/devices/:device_id/status", s.handleDeviceStatus)
		api.Any("/devices/:device_id/proxy/*path", s.tunnel.Handle)
	}

	s.engine.GET("/ws/device", s.handleDeviceWS)
	s.engine.GET("/ws/viewer", s.handleViewerWS)
}
