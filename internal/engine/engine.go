// Package engine turns submitted text into translated text through a
// remote chat-completion endpoint, under admission control. It owns the
// priority queue, the deduplication table, the result cache, and the
// processing loop that ties the rate limiter, chat client, and text
// splitter together, emitting lifecycle events for every request.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quailsoft/transq/internal/llm"
	"github.com/quailsoft/transq/internal/prompt"
	"github.com/quailsoft/transq/internal/ratelimit"
	"github.com/quailsoft/transq/internal/textsplit"
)

// ChatClient is the outbound call surface. *llm.Client implements it;
// tests substitute fakes.
type ChatClient interface {
	Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

type Config struct {
	Model          string
	Temperature    float64
	MaxChunkRunes  int
	MaxInputTokens int // reject at submit above this estimate; 0 disables

	CacheTTL      time.Duration // default 5m
	PollInterval  time.Duration // default 100ms
	SweepInterval time.Duration // default 1m
	EventBuffer   int           // default 64
}

func (c *Config) applyDefaults() {
	if c.MaxChunkRunes <= 0 {
		c.MaxChunkRunes = 1500
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = 64
	}
}

// pendingGroup records every request id awaiting one outbound call for
// the same content hash. The leader is dispatched; followers share its
// fate and receive their own copy of the terminal event.
type pendingGroup struct {
	leaderID  string
	followers []string
}

type Engine struct {
	client   ChatClient
	limiter  *ratelimit.Limiter
	presets  *prompt.Registry
	splitter *textsplit.Splitter
	cfg      Config

	queue *requestQueue
	cache *resultCache

	mu        sync.Mutex
	pending   map[string]*pendingGroup // content hash -> group
	active    map[string]*request
	followers map[string]string // follower id -> content hash

	events chan Event
}

func New(client ChatClient, limiter *ratelimit.Limiter, presets *prompt.Registry, shared SharedCache, cfg Config) *Engine {
	cfg.applyDefaults()
	return &Engine{
		client:    client,
		limiter:   limiter,
		presets:   presets,
		splitter:  textsplit.New(cfg.MaxChunkRunes),
		cfg:       cfg,
		queue:     newRequestQueue(),
		cache:     newResultCache(cfg.CacheTTL, shared),
		pending:   make(map[string]*pendingGroup),
		active:    make(map[string]*request),
		followers: make(map[string]string),
		events:    make(chan Event, cfg.EventBuffer),
	}
}

// Events is the single stream carrying every request's fate.
func (e *Engine) Events() <-chan Event {
	return e.events
}

// Submit admits a translation request. Cache hits resolve synchronously
// without a queue entry; duplicates of an in-flight text attach as
// followers of the pending dispatch; everything else enters the priority
// queue.
func (e *Engine) Submit(ctx context.Context, text, presetID string, priority Priority) (SubmitResult, error) {
	norm := normalize(text)
	if norm == "" {
		return SubmitResult{}, errors.New("engine: empty text")
	}
	if presetID == "" {
		presetID = "general"
	}
	if e.cfg.MaxInputTokens > 0 && estimateTokens(norm) > e.cfg.MaxInputTokens {
		return SubmitResult{}, fmt.Errorf("engine: input too large: ~%d tokens exceeds cap %d",
			estimateTokens(norm), e.cfg.MaxInputTokens)
	}

	id := newRequestID()
	key := cacheKey(presetID, norm)
	if cached, ok := e.cache.Get(ctx, key); ok {
		return SubmitResult{RequestID: id, Outcome: OutcomeCached, TranslatedText: cached}, nil
	}

	hash := contentHash(presetID, norm)

	e.mu.Lock()
	if group, ok := e.pending[hash]; ok {
		group.followers = append(group.followers, id)
		e.followers[id] = hash
		e.mu.Unlock()
		return SubmitResult{RequestID: id, Outcome: OutcomeFollower}, nil
	}
	e.pending[hash] = &pendingGroup{leaderID: id}
	e.mu.Unlock()

	reqCtx, cancel := context.WithCancel(context.Background())
	req := &request{
		id:        id,
		text:      text,
		presetID:  presetID,
		priority:  priority,
		createdAt: time.Now(),
		textHash:  hash,
		cacheKey:  key,
		ctx:       reqCtx,
		cancel:    cancel,
	}
	e.queue.Push(req)

	return SubmitResult{RequestID: id, Outcome: OutcomeQueued}, nil
}

// Cancel aborts a request by id. Queued requests leave the queue and get
// their Cancelled event immediately; dispatched requests have their
// handle signalled and the in-flight call reports the cancellation;
// followers detach without touching the shared dispatch. Returns false
// for unknown (already terminal) ids.
func (e *Engine) Cancel(id string) bool {
	if req, ok := e.queue.Remove(id); ok {
		req.cancel()
		ids := e.closeGroup(req.textHash)
		for _, rid := range ids {
			e.emit(Event{Kind: EventCancelled, RequestID: rid, Preset: req.presetID})
		}
		return true
	}

	e.mu.Lock()
	if req, ok := e.active[id]; ok {
		e.mu.Unlock()
		req.cancel()
		return true
	}
	if hash, ok := e.followers[id]; ok {
		delete(e.followers, id)
		if group, ok := e.pending[hash]; ok {
			for i, fid := range group.followers {
				if fid == id {
					group.followers = append(group.followers[:i], group.followers[i+1:]...)
					break
				}
			}
		}
		e.mu.Unlock()
		e.emit(Event{Kind: EventCancelled, RequestID: id})
		return true
	}
	e.mu.Unlock()
	return false
}

// Run drives the processing loop and the cache sweeper until ctx ends.
// The loop never blocks on network I/O: each admitted request is
// dispatched on its own goroutine.
func (e *Engine) Run(ctx context.Context) {
	log.Printf("engine started poll=%s sweep=%s cache_ttl=%s",
		e.cfg.PollInterval, e.cfg.SweepInterval, e.cfg.CacheTTL)

	ticker := time.NewTicker(e.cfg.PollInterval)
	defer ticker.Stop()
	sweeper := time.NewTicker(e.cfg.SweepInterval)
	defer sweeper.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("engine shutting down")
			return
		case <-sweeper.C:
			remaining := e.cache.Sweep()
			log.Printf("cache sweep done entries=%d", remaining)
		case <-ticker.C:
			e.tick()
		}
	}
}

// tick asks for admission and dispatches at most one request. A denial
// dequeues nothing, preserving ordering for the next tick.
func (e *Engine) tick() {
	req, err := e.queue.PopGated(e.limiter.Admit)
	if err != nil {
		var de *ratelimit.DailyLimitError
		if errors.As(err, &de) {
			log.Printf("dispatch deferred: %v", de)
		}
		return
	}
	if req == nil {
		return
	}
	// registered as active before the goroutine starts so Cancel can
	// find the request in the gap
	e.mu.Lock()
	e.active[req.id] = req
	e.mu.Unlock()
	go e.process(req)
}

func (e *Engine) process(req *request) {
	defer func() {
		e.mu.Lock()
		delete(e.active, req.id)
		e.mu.Unlock()
	}()

	preset, err := e.presets.Get(req.presetID)
	if err != nil {
		e.finishFailed(req, err)
		return
	}

	var chunks []textsplit.Chunk
	if utf8.RuneCountInString(req.text) > e.cfg.MaxChunkRunes {
		chunks = e.splitter.Split(req.text)
		log.Printf("request %s split into %d chunks", req.id, len(chunks))
	} else {
		chunks = []textsplit.Chunk{{Index: 0, Text: req.text}}
	}

	start := time.Now()
	translated := make([]textsplit.TranslatedChunk, 0, len(chunks))
	tokens := 0

	// chunks go out sequentially: ordering plus source-side overlap carry
	// the cross-boundary context, not API conversation state
	for _, chunk := range chunks {
		if req.ctx.Err() != nil {
			e.finishCancelled(req)
			return
		}

		resp, err := e.client.Complete(req.ctx, llm.ChatRequest{
			Model:       e.cfg.Model,
			Messages:    []llm.ChatMessage{llm.SystemMessage(preset.System), llm.UserMessage(chunk.Text)},
			Temperature: e.cfg.Temperature,
			User:        req.id,
		})
		if err != nil {
			if errors.Is(err, llm.ErrCancelled) {
				e.finishCancelled(req)
				return
			}
			var re *llm.RateLimitedError
			if errors.As(err, &re) {
				e.requeueRateLimited(req, re)
				return
			}
			// a failed chunk fails the whole request; partial output is
			// worse than a clear failure
			e.finishFailed(req, err)
			return
		}

		content, ok := resp.Content()
		if !ok {
			e.finishFailed(req, errors.New("no content in response"))
			return
		}
		if resp.Usage.TotalTokens > 0 {
			tokens += resp.Usage.TotalTokens
		} else {
			tokens += estimateTokens(chunk.Text) + estimateTokens(content)
		}
		translated = append(translated, textsplit.TranslatedChunk{
			Index:      chunk.Index,
			Text:       content,
			OverlapLen: chunk.OverlapLen,
		})
	}

	merged := e.splitter.Merge(translated)
	e.cache.Set(context.Background(), req.cacheKey, merged)

	result := Result{
		RequestID:      req.id,
		OriginalText:   req.text,
		TranslatedText: merged,
		TokensUsed:     tokens,
		Duration:       time.Since(start),
	}

	ids := e.closeGroup(req.textHash)
	for _, rid := range ids {
		r := result
		r.RequestID = rid
		e.emit(Event{Kind: EventCompleted, RequestID: rid, Preset: req.presetID, Result: &r})
	}
}

// requeueRateLimited puts the request back at the front of its priority
// band; its pending group stays open so duplicates keep attaching.
func (e *Engine) requeueRateLimited(req *request, cause *llm.RateLimitedError) {
	wait := cause.RetryAfter
	if wait <= 0 {
		wait = e.limiter.NextAvailable()
	}
	if wait <= 0 {
		wait = time.Minute
	}
	e.queue.PushFront(req)
	e.emit(Event{Kind: EventRateLimited, RequestID: req.id, Preset: req.presetID, Wait: wait})
	log.Printf("request %s rate limited by endpoint, requeued wait=%s", req.id, wait)
}

func (e *Engine) finishFailed(req *request, cause error) {
	log.Printf("request %s failed: %v", req.id, cause)
	ids := e.closeGroup(req.textHash)
	for _, rid := range ids {
		e.emit(Event{Kind: EventFailed, RequestID: rid, Preset: req.presetID, Error: cause.Error()})
	}
}

func (e *Engine) finishCancelled(req *request) {
	ids := e.closeGroup(req.textHash)
	for _, rid := range ids {
		e.emit(Event{Kind: EventCancelled, RequestID: rid, Preset: req.presetID})
	}
}

// closeGroup removes the pending group for a hash and returns every id
// that must receive the terminal event, leader first.
func (e *Engine) closeGroup(hash string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	group, ok := e.pending[hash]
	if !ok {
		return nil
	}
	delete(e.pending, hash)
	ids := append([]string{group.leaderID}, group.followers...)
	for _, fid := range group.followers {
		delete(e.followers, fid)
	}
	return ids
}

// emit never blocks the processing path: a full consumer gets its event
// dropped with a log line rather than a stalled dispatch.
func (e *Engine) emit(ev Event) {
	select {
	case e.events <- ev:
	default:
		log.Printf("event channel full, dropping event kind=%s request=%s", ev.Kind, ev.RequestID)
	}
}

func (e *Engine) Stats() Stats {
	e.mu.Lock()
	active := len(e.active)
	e.mu.Unlock()
	return Stats{
		Queued:              e.queue.Len(),
		Active:              active,
		Cached:              e.cache.Len(),
		RemainingThisMinute: e.limiter.RemainingThisMinute(),
		RemainingToday:      e.limiter.RemainingToday(),
	}
}

func newRequestID() string {
	return "req_" + uuid.NewString()
}
