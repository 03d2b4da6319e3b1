package house

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/mdlayher/vsock"

	"github.com/StabilityNexus/hammerhouse/core"
	"github.com/StabilityNexus/hammerhouse/houseapi"
)

// vsockRequest is the flat vsock protocol envelope: the operation
// request plus the caller principal, which on this transport is
// asserted by the host side of the socket.
type vsockRequest struct {
	houseapi.Request
	Principal string `json:"principal"`
}

// serveVsock accepts connections on the configured vsock port. Each
// connection carries one JSON request and receives one JSON response.
func (h *House) serveVsock(ctx context.Context) error {
	listener, err := vsock.Listen(h.cfg.VsockPort, nil)
	if err != nil {
		return fmt.Errorf("failed to create vsock listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Printf("ERROR: Failed to close vsock listener: %v", err)
		}
	}()

	log.Printf("INFO: Auction house listening on vsock port %d", h.cfg.VsockPort)

	semaphore := make(chan struct{}, h.cfg.MaxWorkers)
	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		listener.Close()
		close(done)
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			select {
			case <-done:
				return nil
			default:
				log.Printf("ERROR: Failed to accept vsock connection: %v", err)
				continue
			}
		}

		// Acquire worker slot - immediate rejection if pool full.
		select {
		case semaphore <- struct{}{}:
			go func(c net.Conn) {
				defer func() { <-semaphore }()
				h.handleVsockConn(c)
			}(conn)
		default:
			log.Printf("INFO: No workers available, rejecting vsock connection (pool full)")
			if err := conn.Close(); err != nil {
				log.Printf("ERROR: Failed to close rejected connection: %v", err)
			}
		}
	}
}

func (h *House) handleVsockConn(conn net.Conn) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Panic recovered in vsock handler: %v", r)
		}
		if err := conn.Close(); err != nil {
			log.Printf("ERROR: Failed to close connection: %v", err)
		}
	}()

	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, conn); err != nil {
		log.Printf("ERROR: Failed to read vsock request: %v", err)
		return
	}

	var req vsockRequest
	if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
		h.writeVsockResponse(conn, houseapi.ErrorResponse("", fmt.Errorf("malformed request: %w", err), 0))
		return
	}
	if req.Principal == "" {
		h.writeVsockResponse(conn, houseapi.ErrorResponse(req.RequestID, fmt.Errorf("missing principal"), 0))
		return
	}

	log.Printf("INFO: Received vsock request type: %s", req.Type)
	resp := h.Submit(core.Principal(req.Principal), req.Request)
	h.writeVsockResponse(conn, resp)
}

func (h *House) writeVsockResponse(conn net.Conn, resp houseapi.Response) {
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		log.Printf("ERROR: Failed to encode vsock response: %v", err)
	}
}
