package ingest

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rsummers/bidwatch/internal/feed"
	"github.com/rsummers/bidwatch/internal/match"
	"github.com/rsummers/bidwatch/internal/models"
	"github.com/rsummers/bidwatch/internal/score"
)

// Store is the persistence surface the pipeline writes through.
type Store interface {
	UpsertOpportunity(ctx context.Context, o *models.Opportunity) error
	ListOpportunityBatch(ctx context.Context, limit, offset int) ([]models.Opportunity, error)
	UpdateOpportunityMatch(ctx context.Context, id uuid.UUID, score int, nsns []string, classCode string) error
}

// Feed is the procurement-feed surface the pipeline reads from.
type Feed interface {
	Search(ctx context.Context, postedFrom time.Time, limit, offset int) ([]feed.Notice, int, error)
	GetOpportunityDetails(ctx context.Context, noticeID string) (*feed.Detail, error)
}

// RunStats summarizes one ingest run.
type RunStats struct {
	Fetched        int `json:"fetched"`
	Matched        int `json:"matched"`
	Saved          int `json:"saved"`
	DetailFailures int `json:"detail_failures"`
}

type Pipeline struct {
	store    Store
	feed     Feed
	matcher  *match.Matcher
	scoring  score.Config
	pageSize int
	lookback int // days of feed history to pull per run
	log      zerolog.Logger
	now      func() time.Time
}

func NewPipeline(store Store, fd Feed, matcher *match.Matcher, scoring score.Config, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:    store,
		feed:     fd,
		matcher:  matcher,
		scoring:  scoring,
		pageSize: 100,
		lookback: 7,
		log:      log,
		now:      time.Now,
	}
}

// Run pulls the feed, matches and scores each solicitation, and upserts
// the results. A failed detail fetch degrades to the search-level
// description rather than dropping the notice.
func (p *Pipeline) Run(ctx context.Context) (*RunStats, error) {
	stats := &RunStats{}
	now := p.now()
	postedFrom := now.AddDate(0, 0, -p.lookback)

	offset := 0
	for {
		notices, total, err := p.feed.Search(ctx, postedFrom, p.pageSize, offset)
		if err != nil {
			return stats, fmt.Errorf("feed search failed: %w", err)
		}
		if len(notices) == 0 {
			break
		}

		for _, notice := range notices {
			stats.Fetched++

			opp := p.evaluate(ctx, notice, now, stats)
			if err := p.store.UpsertOpportunity(ctx, opp); err != nil {
				p.log.Error().Err(err).Str("notice_id", notice.NoticeID).Msg("upsert failed")
				continue
			}
			stats.Saved++
			if opp.Score > 0 {
				stats.Matched++
			}
		}

		offset += len(notices)
		if offset >= total {
			break
		}
	}

	p.log.Info().
		Int("fetched", stats.Fetched).
		Int("saved", stats.Saved).
		Int("matched", stats.Matched).
		Int("detail_failures", stats.DetailFailures).
		Msg("ingest run complete")

	return stats, nil
}

// evaluate builds the persisted opportunity for one feed notice.
func (p *Pipeline) evaluate(ctx context.Context, notice feed.Notice, now time.Time, stats *RunStats) *models.Opportunity {
	description := notice.Description
	if detail, err := p.feed.GetOpportunityDetails(ctx, notice.NoticeID); err != nil {
		stats.DetailFailures++
		p.log.Warn().Err(err).Str("notice_id", notice.NoticeID).Msg("detail fetch failed, using search payload")
	} else if detail.Description != "" {
		description = detail.Description
	}

	html := SanitizeHTML(sanitizeUTF8(description))
	text := HTMLToText(html)
	title := cleanText(sanitizeUTF8(notice.Title))

	matchText := strings.Join([]string{title, notice.SolicitationNumber, text}, " ")
	res := p.matcher.Match(matchText, notice.NAICSCode, notice.ClassificationCode)

	deadline := feed.ParseDeadline(notice.ResponseDeadLine)
	setAside := strings.TrimSpace(notice.TypeOfSetAside) != ""

	return &models.Opportunity{
		NoticeID:         notice.NoticeID,
		SolicitationNum:  notice.SolicitationNumber,
		Title:            title,
		Description:      html,
		NAICS:            notice.NAICSCode,
		PSC:              notice.ClassificationCode,
		SetAside:         strings.TrimSpace(notice.TypeOfSetAside),
		ResponseDeadline: deadline,
		Score:            score.Compute(res, deadline, setAside, now, p.scoring),
		MatchedNSNs:      res.NSNs,
		MatchedClassCode: res.ClassCode,
		Status:           models.StatusNew,
	}
}

// Rescore re-runs matching and scoring over every stored opportunity,
// in batches, persisting only rows whose result changed. Returns the
// number of updated rows.
func (p *Pipeline) Rescore(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 500
	}

	now := p.now()
	updated := 0
	offset := 0

	for {
		batch, err := p.store.ListOpportunityBatch(ctx, batchSize, offset)
		if err != nil {
			return updated, fmt.Errorf("loading rescore batch: %w", err)
		}
		if len(batch) == 0 {
			break
		}

		for _, opp := range batch {
			text := HTMLToText(opp.Description)
			matchText := strings.Join([]string{opp.Title, opp.SolicitationNum, text}, " ")
			res := p.matcher.Match(matchText, opp.NAICS, opp.PSC)

			newScore := score.Compute(res, opp.ResponseDeadline, opp.SetAside != "", now, p.scoring)
			if newScore == opp.Score &&
				reflect.DeepEqual(res.NSNs, opp.MatchedNSNs) &&
				res.ClassCode == opp.MatchedClassCode {
				continue
			}

			if err := p.store.UpdateOpportunityMatch(ctx, opp.ID, newScore, res.NSNs, res.ClassCode); err != nil {
				p.log.Error().Err(err).Str("opportunity_id", opp.ID.String()).Msg("rescore update failed")
				continue
			}
			updated++
		}

		offset += len(batch)
	}

	p.log.Info().Int("updated", updated).Msg("rescore complete")
	return updated, nil
}
