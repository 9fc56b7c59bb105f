package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/watchhub/signalhub/internal/store"
)

type registerDeviceRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
	Name     string `json:"name"`
	Type     string `json:"type"`
}

// handleRegisterDevice is POST /api/devices/register (spec.md §1: device
// provisioning is an external collaborator's job up to this call — the hub
// just creates or returns the durable record).
func (s *Server) handleRegisterDevice(c *gin.Context) {
	var req registerDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := s.store.RegisterDevice(c.Request.Context(), req.DeviceID, req.Name, req.Type)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device"})
		return
	}
	c.JSON(http.StatusOK, device)
}

type generatePairingRequest struct {
	DeviceID string `json:"device_id" binding:"required"`
}

// handleGeneratePairingCode is POST /api/pairing/generate (spec.md §4.7),
// called by the device itself (or its installer) to mint a claim code.
func (s *Server) handleGeneratePairingCode(c *gin.Context) {
	var req generatePairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := s.store.GetDeviceByDeviceID(c.Request.Context(), req.DeviceID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up device"})
		return
	}

	code, err := s.pairing.Generate(c.Request.Context(), device.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate pairing code"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"code": code.Code, "expires_at": code.ExpiresAt})
}

type redeemPairingRequest struct {
	Code string `json:"code" binding:"required"`
}

// handleRedeemPairingCode is POST /api/devices/pair, called by an
// authenticated viewer to claim ownership of a device.
func (s *Server) handleRedeemPairingCode(c *gin.Context) {
	var req redeemPairingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := s.pairing.Redeem(c.Request.Context(), req.Code, userIDFromContext(c))
	if errors.Is(err, store.ErrAlreadyUsed) {
		c.JSON(http.StatusConflict, gin.H{"error": "pairing code already used or expired"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to redeem pairing code"})
		return
	}
	c.JSON(http.StatusOK, device)
}

// handleDeviceStatus is GET /api/devices/:device_id/status.
func (s *Server) handleDeviceStatus(c *gin.Context) {
	deviceID := c.Param("device_id")
	device, err := s.store.GetDeviceByDeviceID(c.Request.Context(), deviceID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown device"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to look up device"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"device_id":       device.DeviceID,
		"name":            device.Name,
		"type":            device.Type,
		"online":          device.Online,
		"last_seen":       device.LastSeen,
		"registry_online": s.registry.IsDeviceOnline(deviceID),
	})
}
