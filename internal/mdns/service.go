// Package mdns advertises the Chapterdesk server on the local network through Avahi.
package mdns

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/holoplot/go-avahi"
)

const (
	// ServiceType is the DNS-SD service type of Chapterdesk servers.
	ServiceType = "_chapterdesk._tcp"

	// APIVersion is advertised in the TXT record.
	APIVersion = "v1"
)

// Instance describes what is advertised.
type Instance struct {
	Name      string
	Version   string
	PublicURL string
}

// TXTRecords returns the TXT record entries for an instance.
func (in Instance) TXTRecords() [][]byte {
	records := [][]byte{
		[]byte("name=" + in.Name),
		[]byte("api=" + APIVersion),
	}
	if in.Version != "" {
		records = append(records, []byte("version="+in.Version))
	}
	if in.PublicURL != "" {
		records = append(records, []byte("url="+in.PublicURL))
	}
	return records
}

// Service publishes the server through the Avahi daemon on the system bus.
// Failing to reach Avahi is expected in containers and is reported, not fatal.
type Service struct {
	logger *slog.Logger

	mu     sync.Mutex
	conn   *dbus.Conn
	server *avahi.Server
	group  *avahi.EntryGroup
}

// NewService creates a new mDNS service.
func NewService(logger *slog.Logger) *Service {
	return &Service{logger: logger}
}

// Start publishes the instance on port. Calling Start again republishes.
func (s *Service) Start(instance Instance, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port %d", port)
	}
	if instance.Name == "" {
		return fmt.Errorf("instance name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	conn, err := dbus.SystemBus()
	if err != nil {
		return fmt.Errorf("connect system bus: %w", err)
	}

	server, err := avahi.ServerNew(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("connect avahi: %w", err)
	}

	group, err := server.EntryGroupNew()
	if err != nil {
		server.Close()
		conn.Close()
		return fmt.Errorf("create entry group: %w", err)
	}

	err = group.AddService(
		avahi.InterfaceUnspec,
		avahi.ProtoUnspec,
		0,
		instance.Name,
		ServiceType,
		"local",
		"",
		uint16(port),
		instance.TXTRecords(),
	)
	if err == nil {
		err = group.Commit()
	}
	if err != nil {
		server.EntryGroupFree(group)
		server.Close()
		conn.Close()
		return fmt.Errorf("publish service: %w", err)
	}

	s.conn, s.server, s.group = conn, server, group

	s.logger.Info("mDNS advertisement started",
		"service", ServiceType,
		"port", port,
		"name", instance.Name,
	)
	return nil
}

// Running reports whether the service is currently published.
func (s *Service) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.group != nil
}

// Stop withdraws the advertisement.
// Safe to call multiple times or if not started.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopLocked() {
		s.logger.Info("mDNS advertisement stopped")
	}
}

func (s *Service) stopLocked() bool {
	if s.group == nil {
		return false
	}
	_ = s.group.Reset()
	s.server.EntryGroupFree(s.group)
	s.server.Close()
	_ = s.conn.Close()
	s.conn, s.server, s.group = nil, nil, nil
	return true
}
