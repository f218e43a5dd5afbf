package services

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/anomot/get-biji-knowledge-skill/internal/core/domain"
	"github.com/anomot/get-biji-knowledge-skill/internal/logger"
)

// streamDataPrefix marks a server-sent event payload line.
const streamDataPrefix = "data: "

// Rate limiting shares the hard-error wire code; the server tells the
// two apart only in the message text.
var rateLimitMarkers = []string{"每分钟", "稍后重试", "频率限制", "rate limit"}

// streamFrame is the wire shape of one decoded stream payload.
type streamFrame struct {
	MsgType int `json:"msg_type"`
	Data    struct {
		Msg          string      `json:"msg"`
		RefList      []wireRef   `json:"ref_list"`
		RetryDelayMs json.Number `json:"retry_delay_ms"`
	} `json:"data"`
}

// wireRef is the wire shape of one citation entry.
type wireRef struct {
	Title   string `json:"title"`
	RagType string `json:"rag_type"`
	NoteID  string `json:"note_id"`
	Detail  []struct {
		Content string `json:"content"`
	} `json:"detail"`
}

func (r wireRef) toCitation() domain.Citation {
	c := domain.Citation{
		Title:   r.Title,
		TypeTag: r.RagType,
		NoteID:  r.NoteID,
	}
	for _, d := range r.Detail {
		if d.Content != "" {
			c.DetailSnippets = append(c.DetailSnippets, d.Content)
		}
	}
	return c
}

// StreamAccumulator reduces raw stream lines into a StreamOutcome.
// It is a pure state machine: no I/O, no sleeping. Feed it one line at
// a time; once it halts, further lines are dropped without mutation.
type StreamAccumulator struct {
	answer    strings.Builder
	thinking  strings.Builder
	citations []domain.Citation

	status     domain.TerminalStatus
	message    string
	retryDelay time.Duration
	halted     bool

	onChunk  func(text string)
	onNotice func(text string)
}

// NewStreamAccumulator creates an accumulator. Both callbacks are
// optional: onChunk receives each answer fragment for incremental
// display, onNotice receives advisory messages.
func NewStreamAccumulator(onChunk, onNotice func(text string)) *StreamAccumulator {
	return &StreamAccumulator{onChunk: onChunk, onNotice: onNotice}
}

// Feed decodes one raw line from the stream body. Lines without the
// data prefix and lines carrying malformed JSON are skipped. The return
// value is false once decoding has halted on a hard error.
func (a *StreamAccumulator) Feed(line string) bool {
	if a.halted {
		return false
	}

	payload, ok := strings.CutPrefix(line, streamDataPrefix)
	if !ok {
		return true
	}

	var frame streamFrame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		logger.Debug("skipping malformed stream frame: %v", err)
		return true
	}

	tag := domain.TagForCode(frame.MsgType)
	if tag == domain.TagHardError && isRateLimitText(frame.Data.Msg) {
		tag = domain.TagRateLimit
	}

	switch tag {
	case domain.TagAnswerChunk:
		a.answer.WriteString(frame.Data.Msg)
		if a.onChunk != nil {
			a.onChunk(frame.Data.Msg)
		}

	case domain.TagThinking:
		a.thinking.WriteString(frame.Data.Msg)

	case domain.TagCitations:
		// Last writer wins: each citation frame replaces the list.
		refs := make([]domain.Citation, 0, len(frame.Data.RefList))
		for _, r := range frame.Data.RefList {
			refs = append(refs, r.toCitation())
		}
		a.citations = refs

	case domain.TagStreamEnd:
		if a.status == domain.StatusUnset {
			a.status = domain.StatusOK
		}

	case domain.TagRateLimit:
		a.status = domain.StatusRateLimited
		a.message = frame.Data.Msg
		a.retryDelay = retryDelayOf(frame.Data.RetryDelayMs)
		if a.onNotice != nil {
			a.onNotice(frame.Data.Msg)
		}

	case domain.TagHardError:
		a.status = domain.StatusError
		a.message = frame.Data.Msg
		a.halted = true
		return false

	case domain.TagProgress, domain.TagRiskNotice, domain.TagThinkingDuration:
		if a.onNotice != nil && frame.Data.Msg != "" {
			a.onNotice(frame.Data.Msg)
		}

	case domain.TagIgnore:
		logger.Debug("ignoring stream frame msg_type=%d", frame.MsgType)
	}

	return true
}

// Halted reports whether a hard error stopped decoding.
func (a *StreamAccumulator) Halted() bool {
	return a.halted
}

// Outcome returns the reduced stream state. A stream that produced an
// answer but never signalled completion still counts as ok.
func (a *StreamAccumulator) Outcome() domain.StreamOutcome {
	status := a.status
	if status == domain.StatusUnset && a.answer.Len() > 0 {
		status = domain.StatusOK
	}
	return domain.StreamOutcome{
		Answer:     a.answer.String(),
		Thinking:   a.thinking.String(),
		Citations:  a.citations,
		Status:     status,
		Message:    a.message,
		RetryDelay: a.retryDelay,
	}
}

// isRateLimitText reports whether an error payload is actually a
// throttling notice.
func isRateLimitText(msg string) bool {
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// retryDelayOf converts the optional wire delay into a duration,
// falling back to the default window when absent or unparseable.
func retryDelayOf(raw json.Number) time.Duration {
	if raw == "" {
		return domain.DefaultRetryDelay
	}
	ms, err := raw.Int64()
	if err != nil || ms <= 0 {
		return domain.DefaultRetryDelay
	}
	return time.Duration(ms) * time.Millisecond
}
