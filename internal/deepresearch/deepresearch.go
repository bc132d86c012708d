// Package deepresearch implements the agentic DeepResearchAgent state
// machine of spec.md §4.K:
//
//	PLAN -> LOCAL_RETRIEVE -> COVERAGE_EVAL -> REWRITE -> WEB_SEARCH
//	     -> MISSING_CONCEPTS -> SYNTHESIS -> RETURN
//
// Grounded on original_source/deep_research.py's ask() and
// agentic_research.py's SmartResearchAgent: sub-question extraction,
// local-weak coverage test, the coverage/confidence heuristics (pinned down
// in SPEC_FULL.md §4.K from the original's exact constants), the
// missing-concept retrieval loop, and Jaccard-similarity follow-up question
// filtering.
package deepresearch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/yungbote/ragcore/internal/apperr"
	"github.com/yungbote/ragcore/internal/cache"
	"github.com/yungbote/ragcore/internal/clients/generator"
	"github.com/yungbote/ragcore/internal/clients/redis"
	"github.com/yungbote/ragcore/internal/clients/websearch"
	"github.com/yungbote/ragcore/internal/config"
	"github.com/yungbote/ragcore/internal/logger"
	"github.com/yungbote/ragcore/internal/repos"
	"github.com/yungbote/ragcore/internal/retriever"
	"github.com/yungbote/ragcore/internal/types"
)

const (
	StatePlan            = "plan"
	StateLocalRetrieve    = "local_retrieve"
	StateCoverageEval     = "coverage_eval"
	StateRewrite          = "rewrite"
	StateWebSearch        = "web_search"
	StateMissingConcepts  = "missing_concepts"
	StateSynthesis        = "synthesis"
	StateDone             = "done"
)

type Reference = types.ResearchMessageReference

type Result struct {
	SessionID         uuid.UUID   `json:"session_id"`
	Answer            string      `json:"answer"`
	Confidence        float64     `json:"confidence"`
	UsedWeb           bool        `json:"used_web"`
	TimedOut          bool        `json:"timed_out"`
	References        []Reference `json:"references"`
	FollowupQuestions []string    `json:"followup_questions"`
	ElapsedSeconds    float64     `json:"elapsed_seconds"`
}

type Agent struct {
	sessions   repos.ResearchSessionRepo
	retr       *retriever.Retriever
	gen        generator.Generator
	web        websearch.WebSearch
	cache      cache.Cacher
	bus        redis.ActivityBus
	activities repos.ActivityRepo
	cfg        config.ResearchConfig
	log        *logger.Logger
}

func New(sessions repos.ResearchSessionRepo, retr *retriever.Retriever, gen generator.Generator, web websearch.WebSearch, c cache.Cacher, bus redis.ActivityBus, activities repos.ActivityRepo, cfg config.ResearchConfig, log *logger.Logger) *Agent {
	return &Agent{sessions: sessions, retr: retr, gen: gen, web: web, cache: c, bus: bus, activities: activities, cfg: cfg, log: log.With("component", "DeepResearchAgent")}
}

// Start creates a new ResearchSession for a question, grounded on
// original_source/deep_research.py's start_conversation.
func (a *Agent) Start(ctx context.Context, userID, spaceID uuid.UUID, question string) (*types.ResearchSession, error) {
	s := &types.ResearchSession{
		UserID:   userID,
		SpaceID:  spaceID,
		Question: question,
		State:    StatePlan,
	}
	return a.sessions.Create(ctx, nil, s)
}

// Ask drives one full pass of the state machine against a new message in an
// existing conversation, under a wall-clock budget. message is the user's
// turn (falling back to the session's opening Question if blank, so a bare
// first ask still works); urls are caller-supplied pages folded in as
// additional web evidence alongside (or instead of) a live web search.
// Every call appends a user ResearchMessage and an assistant ResearchMessage
// to session.Messages (spec.md:51), bounded to MaxResearchMessages.
func (a *Agent) Ask(ctx context.Context, sessionID uuid.UUID, message string, forceWeb bool, urls []string) (*Result, error) {
	session, err := a.sessions.GetByID(ctx, nil, sessionID)
	if err != nil {
		return nil, apperr.NotFound("research session not found")
	}
	question := strings.TrimSpace(message)
	if question == "" {
		question = session.Question
	}

	deadline := time.Now().Add(a.cfg.WallClockBudget)
	remaining := func() time.Duration {
		r := time.Until(deadline)
		if r < 0 {
			return 0
		}
		return r
	}
	turnStart := time.Now()

	a.emit(session, "research.step", map[string]any{"state": StatePlan})
	subqs := extractSubqueries(question)

	localTopK := a.cfg.LocalTopK
	if localTopK <= 0 {
		localTopK = 8
	}

	var hitsAll []retriever.Hit
	var localContexts []string
	a.emit(session, "research.step", map[string]any{"state": StateLocalRetrieve})
	for _, sq := range subqs {
		hits, err := a.retr.Search(ctx, session.UserID, session.SpaceID, sq, localTopK)
		if err != nil {
			a.log.Warn("local retrieve failed", "subquery", sq, "error", err)
			continue
		}
		hitsAll = append(hitsAll, hits...)
		if len(hits) > 0 {
			localContexts = append(localContexts, joinHitText(hits))
		}
	}

	a.emit(session, "research.step", map[string]any{"state": StateCoverageEval})
	var rewritten string
	if isLocalWeak(hitsAll, a.cfg.CoverageHMin, a.cfg.CoverageDMin) {
		a.emit(session, "research.step", map[string]any{"state": StateRewrite})
		rewritten = a.rewriteForSearch(ctx, question)
		if rewritten != "" {
			hits, err := a.retr.Search(ctx, session.UserID, session.SpaceID, rewritten, localTopK)
			if err == nil {
				hitsAll = append(hitsAll, hits...)
				if len(hits) > 0 {
					localContexts = append(localContexts, joinHitText(hits))
				}
			}
		}
	}
	if len(localContexts) == 0 {
		localContexts = []string{"(No relevant context found in your knowledge base.)"}
	}

	searchQuery := question
	if rewritten != "" {
		searchQuery = rewritten
	}

	webTopK := a.cfg.WebTopK
	if webTopK <= 0 {
		webTopK = 8
	}
	retryLoops := a.cfg.RetryLoops
	missingConceptLoops := a.cfg.MissingConceptLoops
	if a.cfg.MaxIterations > 0 {
		// MaxIterations is a ceiling applied to each loop count on its own:
		// the web retry loop and the missing-concept loop are each clamped
		// to it, so together they can run up to twice that many iterations
		// (SPEC_FULL.md §4.K).
		if retryLoops > a.cfg.MaxIterations {
			retryLoops = a.cfg.MaxIterations
		}
		if missingConceptLoops > a.cfg.MaxIterations {
			missingConceptLoops = a.cfg.MaxIterations
		}
	}

	var urlHits []websearch.Hit
	if len(urls) > 0 && a.web != nil {
		for _, u := range urls {
			hit, err := a.web.FetchURL(ctx, u)
			if err != nil {
				a.log.Warn("fetch explicit url failed", "url", u, "error", err)
				continue
			}
			urlHits = append(urlHits, hit)
		}
	}

	var webHits []websearch.Hit
	var webContexts []string
	var confidence float64
	usedWeb := len(urlHits) > 0

	a.emit(session, "research.step", map[string]any{"state": StateWebSearch})
	prevConfidence := 0.0
	for attempt := 0; attempt <= retryLoops; attempt++ {
		force := forceWeb || attempt > 0
		wHits, conf, attempted := a.decideWebAndContexts(ctx, searchQuery, hitsAll, remaining(), webTopK, force)
		webHits = append(append([]websearch.Hit(nil), urlHits...), wHits...)
		confidence = conf
		usedWeb = usedWeb || (attempted && len(wHits) > 0)
		webContexts = webResultContexts(webHits)

		if confidence >= a.cfg.ConfidenceBaseline && (len(localContexts) > 0 || len(webContexts) > 0) {
			break
		}
		// CoverageDeltaMax bounds retries once consecutive attempts stop
		// meaningfully improving confidence, so a run doesn't burn its
		// whole retry budget chasing diminishing returns.
		if attempt > 0 && a.cfg.CoverageDeltaMax > 0 && math.Abs(confidence-prevConfidence) < a.cfg.CoverageDeltaMax {
			break
		}
		prevConfidence = confidence
		if attempt < retryLoops {
			if r := a.rewriteForSearch(ctx, question); r != "" {
				searchQuery = r
			}
		}
	}
	if len(urlHits) > 0 && len(webContexts) == 0 {
		webContexts = webResultContexts(urlHits)
	}

	a.emit(session, "research.step", map[string]any{"state": StateMissingConcepts})
	var missingConcepts []string
	for i := 0; i < missingConceptLoops; i++ {
		_, preview := groupContextBlocks(localContexts, webContexts, missingConcepts)
		fresh := a.identifyMissingConcepts(ctx, question, preview)
		fresh = subtractSeen(fresh, missingConcepts)
		if len(fresh) == 0 {
			break
		}
		missingConcepts = append(missingConcepts, fresh...)
		top := a.cfg.MissingConceptTopK
		if top <= 0 {
			top = 6
		}
		for j, concept := range fresh {
			if j >= top || remaining() <= 2*time.Second {
				break
			}
			hits, err := a.retr.Search(ctx, session.UserID, session.SpaceID, concept, maxInt(8, localTopK/2))
			if err == nil && len(hits) > 0 {
				hitsAll = append(hitsAll, hits...)
				localContexts = append(localContexts, joinHitText(hits))
			}
		}
	}

	fullContext, _ := groupContextBlocks(localContexts, webContexts, missingConcepts)

	a.emit(session, "research.step", map[string]any{"state": StateSynthesis})
	answer := a.synthesize(ctx, question, fullContext)
	if answer == "" {
		answer = truncate(fullContext, 1200)
	}

	confidence = computeConfidence(hitsAll, usedWeb, a.cfg.ConfidenceBaseline)
	timedOut := remaining() <= 0

	// Follow-ups are only worth asking the user when the answer itself is
	// shaky (spec.md §4.K: "emitted when confidence is below a threshold").
	var followups []string
	confidenceThreshold := a.cfg.ConfidenceThreshold
	if confidenceThreshold <= 0 {
		confidenceThreshold = 0.4
	}
	if confidence < confidenceThreshold {
		followups = a.generateFollowups(ctx, question, fullContext)
	}
	refs := buildReferences(hitsAll, webHits, len(urlHits))
	elapsed := time.Since(turnStart).Milliseconds()

	history := appendMessages(session.Messages, question, answer, refs, confidence, elapsed, usedWeb, followups)
	historyJSON, _ := json.Marshal(history)

	session.State = StateDone
	session.Iteration++
	session.Confidence = confidence
	session.UsedWeb = usedWeb
	session.Answer = answer
	session.Messages = datatypes.JSON(historyJSON)
	session.TimedOut = timedOut
	if err := a.sessions.Update(ctx, nil, session); err != nil {
		a.log.Warn("failed to persist research session", "error", err)
	}
	if a.cache != nil {
		a.cache.Set(ctx, cache.DeepResearchSessionKey(session.UserID.String(), session.SpaceID.String(), session.ID.String()), session, a.cfg.SessionMaxAge)
	}
	a.emit(session, "research.step", map[string]any{"state": StateDone, "confidence": confidence, "timed_out": timedOut})

	return &Result{
		SessionID:         session.ID,
		Answer:            answer,
		Confidence:        confidence,
		UsedWeb:           usedWeb,
		TimedOut:          timedOut,
		References:        refs,
		FollowupQuestions: followups,
		ElapsedSeconds:    round2(float64(elapsed) / 1000.0),
	}, nil
}

func (a *Agent) emit(s *types.ResearchSession, kind string, detail map[string]any) {
	if a.bus != nil {
		_ = a.bus.Publish(context.Background(), redis.ActivityEvent{
			UserID: s.UserID.String(), SpaceID: s.SpaceID.String(), Kind: kind, SubjectID: s.ID.String(), Detail: detail,
		})
	}
	if a.activities == nil {
		return
	}
	var detailJSON datatypes.JSON
	if detail != nil {
		if raw, err := json.Marshal(detail); err == nil {
			detailJSON = datatypes.JSON(raw)
		}
	}
	if _, err := a.activities.Create(context.Background(), nil, &types.Activity{
		UserID: s.UserID, SpaceID: s.SpaceID, Kind: kind, SubjectID: s.ID, Detail: detailJSON,
	}); err != nil {
		a.log.Warn("activity persist failed", "error", err, "kind", kind)
	}
}

// decideWebAndContexts mirrors agentic_research.py's decide_web_and_contexts:
// the should_consider_web heuristic gates whether a web lookup is attempted
// at all, and compute_confidence always runs after.
func (a *Agent) decideWebAndContexts(ctx context.Context, query string, hits []retriever.Hit, budget time.Duration, topK int, forceWeb bool) ([]websearch.Hit, float64, bool) {
	attempted := false
	var hitsOut []websearch.Hit
	if forceWeb || shouldConsiderWeb(hits, a.cfg.CoverageHeuristicMin) {
		attempted = true
		if budget >= 5*time.Second || forceWeb {
			if a.web != nil {
				results, err := a.web.Search(ctx, query, topK)
				if err != nil {
					a.log.Warn("web search failed", "error", err)
				} else {
					hitsOut = results
				}
			}
		}
	}
	confidence := computeConfidence(hits, len(hitsOut) > 0, a.cfg.ConfidenceBaseline)
	return hitsOut, confidence, attempted
}

// shouldConsiderWeb implements SPEC_FULL.md §4.K's pinned web-decision
// heuristic: 0.35*coverage + 0.35*diversity + 0.30*semantic, weak if below
// heuristicMin (config.ResearchConfig.CoverageHeuristicMin, default 0.55).
func shouldConsiderWeb(hits []retriever.Hit, heuristicMin float64) bool {
	if len(hits) == 0 {
		return true
	}
	if heuristicMin <= 0 {
		heuristicMin = 0.55
	}
	unique := uniqueDocs(hits)
	coverage := math.Min(float64(len(hits))/8.0, 1.0)
	diversity := math.Min(float64(unique)/5.0, 1.0)
	semantic := bestSemanticQuality(hits)
	heuristic := 0.35*coverage + 0.35*diversity + 0.30*semantic
	return heuristic < heuristicMin
}

// bestSemanticQuality mirrors agentic_research.py's best-distance-based
// semantic_quality, using each hit's own normalized [0,1] backend Score
// (searchindex.ChunkHit.Score, carried through fuseRRF onto retriever.Hit)
// rather than deriving a proxy from the fused RRF rank.
func bestSemanticQuality(hits []retriever.Hit) float64 {
	best := 0.0
	for _, h := range hits {
		if h.Score > best {
			best = h.Score
		}
	}
	return math.Max(0.0, math.Min(1.0, best))
}

// computeConfidence implements SPEC_FULL.md §4.K's pinned confidence
// formula: 0.25 + 0.35*hits_term + 0.25*coverage[+0.15 web], clamped to
// [confidenceBaseline, 0.98].
func computeConfidence(hits []retriever.Hit, usedWeb bool, baseline float64) float64 {
	unique := uniqueDocs(hits)
	hitsTerm := math.Min(float64(len(hits))/8.0, 1.0)
	coverage := math.Min(float64(unique)/5.0, 1.0)
	base := 0.25 + 0.35*hitsTerm + 0.25*coverage
	if usedWeb {
		base += 0.15
	}
	if base < baseline {
		base = baseline
	}
	if base > 0.98 {
		base = 0.98
	}
	return round2(base)
}

func uniqueDocs(hits []retriever.Hit) int {
	set := make(map[uuid.UUID]bool, len(hits))
	for _, h := range hits {
		set[h.DocumentID] = true
	}
	return len(set)
}

// isLocalWeak is the "strong vs. weak" local-coverage test of SPEC_FULL.md
// §4.K: too few hits (below hMin) or too little document diversity (below
// dMin unique documents) means local retrieval alone isn't enough to
// answer, triggering a query rewrite. hMin/dMin default to 4/2
// (config.ResearchConfig.CoverageHMin/CoverageDMin) but are parameters so
// callers can tune the threshold without touching this function.
func isLocalWeak(hits []retriever.Hit, hMin, dMin int) bool {
	if hMin <= 0 {
		hMin = 4
	}
	if dMin <= 0 {
		dMin = 2
	}
	return len(hits) < hMin || uniqueDocs(hits) < dMin
}

var splitRE = regexp.MustCompile(`(?i)\b(?:and|or|,|;|\n)\b`)

// extractSubqueries is a heuristic split into 2-4 sub-questions, grounded
// verbatim on deep_research.py's _extract_subqueries.
func extractSubqueries(question string) []string {
	q := strings.TrimSpace(question)
	if len(q) < 80 {
		return []string{q}
	}
	parts := splitRE.Split(q, -1)
	var subs []string
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			subs = append(subs, t)
		}
	}
	if len(subs) > 1 && len(subs) <= 6 {
		if len(subs) > 4 {
			subs = subs[:4]
		}
		return subs
	}
	return []string{q}
}

func joinHitText(hits []retriever.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Text)
	}
	return strings.Join(parts, "\n\n")
}

func webResultContexts(hits []websearch.Hit) []string {
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, fmt.Sprintf("Web result: %s\nURL: %s\nSnippet: %s", h.Title, h.URL, h.Snippet))
	}
	return out
}

func groupContextBlocks(localContexts, webContexts, missingConcepts []string) (string, string) {
	var blocks []string
	var preview []string
	if len(localContexts) > 0 {
		blocks = append(blocks, "=== LOCAL KB EVIDENCE ===\n"+strings.Join(localContexts, "\n\n"))
		preview = append(preview, localContexts[0])
	}
	if len(webContexts) > 0 {
		blocks = append(blocks, "=== WEB EVIDENCE ===\n"+strings.Join(webContexts, "\n\n"))
		preview = append(preview, webContexts[0])
	}
	if len(missingConcepts) > 0 {
		var mb strings.Builder
		for _, m := range missingConcepts {
			mb.WriteString("- " + m + "\n")
		}
		blocks = append(blocks, "=== MISSING CONCEPTS ===\n"+mb.String())
	}
	full := strings.Join(blocks, "\n\n")
	if full == "" {
		full = "(No relevant context found in your knowledge base.)"
	}
	return full, truncate(strings.Join(preview, "\n\n"), 1200)
}

func (a *Agent) rewriteForSearch(ctx context.Context, question string) string {
	if a.gen == nil {
		return ""
	}
	prompt := "Rewrite the user question into a concise web search query. Use 6-12 words, drop filler, keep proper nouns. Return only the query text.\n\nQuestion: " + question
	out, err := a.gen.Generate(ctx, "", prompt)
	if err != nil {
		return ""
	}
	lines := strings.SplitN(strings.TrimSpace(out), "\n", 2)
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[0])
}

func (a *Agent) identifyMissingConcepts(ctx context.Context, question, preview string) []string {
	if a.gen == nil {
		return nil
	}
	prompt := fmt.Sprintf("Given the question and the available context preview, list missing concepts or subtopics that should be researched. Return a short comma-separated list.\n\nQuestion: %s\nContext preview: %s", question, preview)
	raw, err := a.gen.Generate(ctx, "", prompt)
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range regexp.MustCompile(`[\n,]`).Split(raw, -1) {
		t := strings.Trim(strings.TrimSpace(p), " -\t•")
		if t != "" {
			out = append(out, t)
		}
	}
	if len(out) > 6 {
		out = out[:6]
	}
	return out
}

func (a *Agent) synthesize(ctx context.Context, question, context string) string {
	if a.gen == nil {
		return ""
	}
	guardrails := "You must ground every claim in the provided context. If the context is insufficient, explicitly say what is missing and avoid speculation. Cite the relevant evidence by referring to the section labels (LOCAL KB, WEB)."
	full := guardrails + "\n\n" + truncate(context, 16000)
	out, err := a.gen.Generate(ctx, full, question)
	if err != nil {
		return ""
	}
	return out
}

func (a *Agent) generateFollowups(ctx context.Context, question, preview string) []string {
	if a.gen == nil {
		return nil
	}
	prompt := fmt.Sprintf("Based on the conversation so far, ask clarifying follow-up questions that would help answer the user's current request. Keep them short, specific, and tied to the user's intent. Return a numbered list of up to 4 questions.\n\nCurrent question: %s\nContext preview: %s", question, truncate(preview, 1200))
	raw, err := a.gen.Generate(ctx, "", prompt)
	if err != nil || strings.TrimSpace(raw) == "" {
		return nil
	}
	numberedRE := regexp.MustCompile(`^\d+\.\s*`)
	var candidates []string
	for _, line := range strings.Split(raw, "\n") {
		l := numberedRE.ReplaceAllString(strings.TrimSpace(line), "")
		if l != "" && (strings.HasSuffix(l, "?") || len(l) > 6) {
			candidates = append(candidates, l)
		}
	}
	return filterFollowups(candidates, question, a.cfg.FollowupRelevanceMin)
}

// filterFollowups drops duplicate/near-duplicate/off-topic candidates using
// Jaccard token similarity, grounded on deep_research.py's
// _filter_followup_questions.
func filterFollowups(candidates []string, question string, relevanceMin float64) []string {
	qNorm := normalizeText(question)
	seen := map[string]bool{}
	var out []string
	for _, c := range candidates {
		norm := normalizeText(c)
		if norm == "" || seen[norm] || norm == qNorm {
			continue
		}
		if jaccard(norm, qNorm) < relevanceMin {
			continue
		}
		seen[norm] = true
		out = append(out, c)
	}
	if len(out) > 4 {
		out = out[:4]
	}
	return out
}

var nonAlnumRE = regexp.MustCompile(`[^a-z0-9\s]`)

func normalizeText(s string) string {
	return strings.TrimSpace(nonAlnumRE.ReplaceAllString(strings.ToLower(s), " "))
}

func jaccard(a, b string) float64 {
	sa := tokenSet(a)
	sb := tokenSet(b)
	if len(sa) == 0 || len(sb) == 0 {
		return 0
	}
	inter := 0
	for t := range sa {
		if sb[t] {
			inter++
		}
	}
	union := len(sa) + len(sb) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]bool {
	out := map[string]bool{}
	for _, tok := range strings.Fields(s) {
		if len(tok) > 1 {
			out[tok] = true
		}
	}
	return out
}

// appendMessages unmarshals the session's prior message history, appends
// this turn's user and assistant ResearchMessage pair, and truncates to the
// most recent MaxResearchMessages entries (spec.md:51's bounded list).
func appendMessages(prior datatypes.JSON, question, answer string, refs []Reference, confidence float64, elapsedMS int64, usedWeb bool, followups []string) []types.ResearchMessage {
	var history []types.ResearchMessage
	if len(prior) > 0 {
		_ = json.Unmarshal(prior, &history)
	}
	now := time.Now()
	history = append(history,
		types.ResearchMessage{Role: "user", Text: question, CreatedAt: now},
		types.ResearchMessage{
			Role:         "assistant",
			Text:         answer,
			References:   refs,
			Confidence:   confidence,
			ElapsedMS:    elapsedMS,
			WebAttempted: usedWeb,
			Followups:    followups,
			CreatedAt:    now,
		},
	)
	if len(history) > types.MaxResearchMessages {
		history = history[len(history)-types.MaxResearchMessages:]
	}
	return history
}

// buildReferences merges local retrieval hits with web/url evidence into one
// citation list, tagging each with its source (spec.md §4.K RETURN
// contract: references:[{source:local|web|url,...}]). webHits carries
// urlHits as its prefix (Ask's retry loop rebuilds it that way each
// attempt), so the first urlCount entries are caller-supplied URLs and the
// rest are live web search results.
func buildReferences(hits []retriever.Hit, webHits []websearch.Hit, urlCount int) []Reference {
	refs := make([]Reference, 0, len(hits)+len(webHits))
	for _, h := range hits {
		refs = append(refs, Reference{Source: "local", DocumentID: h.DocumentID, ChunkID: h.ChunkID, Snippet: truncate(h.Text, 280)})
	}
	for i, h := range webHits {
		source := "web"
		if i < urlCount {
			source = "url"
		}
		refs = append(refs, Reference{Source: source, URL: h.URL, Title: h.Title, Snippet: truncate(h.Snippet, 280)})
	}
	return refs
}

func subtractSeen(fresh, seen []string) []string {
	seenSet := make(map[string]bool, len(seen))
	for _, s := range seen {
		seenSet[s] = true
	}
	var out []string
	for _, f := range fresh {
		if !seenSet[f] {
			out = append(out, f)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
