package usbsvc

import (
	"context"
	"fmt"

	"github.com/periphio/hidcore/pkg/hidreport"
	"github.com/periphio/hidcore/pkg/mailbox"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Service composes the transport loop with the output report consumer.
// It owns the consumer side of the command mailbox, delegated to the
// transport backend, and dispatches host requests to the configured
// request handler.
type Service struct {
	log       *zap.Logger
	transport Transport
	commands  *mailbox.Mailbox[Command]
	observer  Observer
	handler   RequestHandler
	ready     chan struct{}
}

func New(log *zap.Logger, transport Transport, commands *mailbox.Mailbox[Command], observer Observer, handler RequestHandler) *Service {
	return &Service{
		log:       log,
		transport: transport,
		commands:  commands,
		observer:  observer,
		handler:   handler,
		ready:     make(chan struct{}),
	}
}

func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// SendReport exposes the inbound half of the report pipe.
func (s *Service) SendReport(ctx context.Context, report hidreport.KeyboardReport) error {
	return s.transport.SendReport(ctx, report)
}

// Start runs the transport loop and the output report consumer until ctx
// is cancelled. Neither loop returns under normal operation.
func (s *Service) Start(ctx context.Context) error {
	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := s.transport.Run(ctx, s.commands, s.observer)
		if err != nil {
			return fmt.Errorf("transport loop failed: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return s.consumeRequests(ctx)
	})
	close(s.ready)
	s.log.Info("USB service started")
	return group.Wait()
}

func (s *Service) consumeRequests(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case req := <-s.transport.Requests():
			resp := s.dispatch(req)
			if err := s.transport.Respond(ctx, resp); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.log.Warn("Failed to respond to host request", zap.Error(err))
			}
		}
	}
}

// dispatch answers a single host request. A malformed or unknown request
// is rejected rather than failing the loop.
func (s *Service) dispatch(req HostRequest) HostResponse {
	resp := HostResponse{Seq: req.Seq, Status: ResponseAccepted}
	switch req.Type {
	case RequestGetReport:
		data, ok := s.handler.GetReport(req.ID)
		if !ok {
			resp.Status = ResponseRejected
			break
		}
		resp.Data = data
	case RequestSetReport:
		resp.Status = s.handler.SetReport(req.ID, req.Data)
	case RequestGetIdle:
		d, ok := s.handler.GetIdle(req.ID)
		if !ok {
			resp.Status = ResponseRejected
			break
		}
		resp.Idle = d
	case RequestSetIdle:
		s.handler.SetIdle(req.ID, req.Idle)
	default:
		s.log.Warn("Rejecting unknown host request", zap.Uint8("type", uint8(req.Type)))
		resp.Status = ResponseRejected
	}
	return resp
}
