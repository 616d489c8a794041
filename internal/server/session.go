package server

import (
	"context"
	"errors"

	"github.com/lotas/filler/internal/applog"
	"github.com/lotas/filler/internal/export"
	"github.com/lotas/filler/internal/pipeline"
	"github.com/lotas/filler/internal/types"
	"github.com/lotas/filler/internal/workspace"
)

var errEmptySummary = errors.New("summary is empty")

type sender interface {
	Send(OutgoingMsg) error
}

// Session owns a workspace and is the only goroutine that touches it.
// Commands, pipeline results and re-resolve results all arrive on channels
// and are applied one per loop iteration.
type Session struct {
	in  <-chan IncomingMsg
	out sender
	src pipeline.Source
	ws  *workspace.Workspace
	log applog.Run

	source     string
	results    <-chan types.Result
	runGen     uint64
	cancelRun  context.CancelFunc
	reresolved chan types.Reresolved
}

func NewSession(in <-chan IncomingMsg, out sender, src pipeline.Source) *Session {
	return &Session{
		in:         in,
		out:        out,
		src:        src,
		ws:         workspace.New(),
		log:        applog.NewRun("session"),
		reresolved: make(chan types.Reresolved, 4),
	}
}

// Run drives the session until ctx is cancelled or the command channel is
// closed.
func (s *Session) Run(ctx context.Context) error {
	s.log.Info("session.start")
	defer s.stopRun()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("session.stop")
			return ctx.Err()

		case msg, ok := <-s.in:
			if !ok {
				s.log.Info("session.stop")
				return nil
			}
			s.handle(ctx, msg)

		case res, ok := <-s.results:
			if !ok {
				s.ws.EndRun(s.runGen)
				s.results = nil
				s.log.Info("session.run.done", "gen", s.runGen)
			} else {
				s.ws.Apply(res)
			}

		case rr := <-s.reresolved:
			s.ws.ApplyReresolve(rr)
		}

		s.pushState()
	}
}

func (s *Session) handle(ctx context.Context, msg IncomingMsg) {
	switch msg.Type {
	case "load":
		s.stopRun()
		if err := s.ws.Load([]byte(msg.Text)); err != nil {
			s.reply(msg, err)
			return
		}
		s.source = msg.Source
		s.log.Info("session.load", "topics", len(s.ws.Topics()), "source", msg.Source)

	case "toggle":
		s.reply(msg, s.ws.ToggleActive(msg.Index))

	case "fetch":
		req, err := s.ws.BeginRun()
		if err != nil {
			s.reply(msg, err)
			return
		}
		runCtx, cancel := context.WithCancel(ctx)
		s.cancelRun = cancel
		s.runGen = req.Gen
		s.results = pipeline.Start(runCtx, s.src, req)

	case "select":
		if n := len(s.ws.Summaries()); msg.Index >= 0 && msg.Index < n && !s.ws.Selectable(msg.Index) {
			s.reply(msg, errEmptySummary)
			return
		}
		s.reply(msg, s.ws.Select(msg.Index))

	case "choose":
		req, err := s.ws.Choose(msg.Title)
		if err != nil {
			s.reply(msg, err)
			return
		}
		go func() {
			rr := pipeline.Reresolve(ctx, s.src, req)
			select {
			case s.reresolved <- rr:
			case <-ctx.Done():
			}
		}()

	case "render":
		format, err := export.ParseFormat(msg.Format)
		if err != nil {
			s.reply(msg, err)
			return
		}
		text, err := s.ws.Render(format, s.source)
		if err != nil {
			s.reply(msg, err)
			return
		}
		s.send(OutgoingMsg{Type: "rendered", ID: msg.ID, Text: text})

	case "state":

	default:
		s.send(OutgoingMsg{Type: "error", ID: msg.ID, Error: "unknown command " + msg.Type, Code: "unknown"})
	}
}

// stopRun abandons the in-flight pass, if any. Its remaining results would
// be dropped as stale anyway; cancelling lets the worker exit.
func (s *Session) stopRun() {
	if s.cancelRun != nil {
		s.cancelRun()
		s.cancelRun = nil
	}
	s.results = nil
}

// reply acknowledges a command, or reports why it was refused.
func (s *Session) reply(msg IncomingMsg, err error) {
	if err == nil {
		if msg.ID != "" {
			s.send(OutgoingMsg{Type: "ok", ID: msg.ID})
		}
		return
	}
	s.log.Error("session."+msg.Type, err)
	s.send(OutgoingMsg{Type: "error", ID: msg.ID, Error: err.Error(), Code: errorCode(err)})
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, export.ErrAlignment):
		return "alignment"
	case errors.Is(err, workspace.ErrDecode):
		return "decode"
	case errors.Is(err, workspace.ErrNoTopics):
		return "no-topics"
	case errors.Is(err, workspace.ErrRunInProgress):
		return "running"
	case errors.Is(err, workspace.ErrOutOfRange):
		return "range"
	case errors.Is(err, workspace.ErrNoSelection):
		return "no-selection"
	case errors.Is(err, errEmptySummary):
		return "empty"
	}
	return "invalid"
}

func (s *Session) pushState() {
	s.send(OutgoingMsg{Type: "state", State: statePayload(s.ws)})
}

func (s *Session) send(msg OutgoingMsg) {
	if err := s.out.Send(msg); err != nil {
		s.log.Error("session.send", err, "type", msg.Type)
	}
}
