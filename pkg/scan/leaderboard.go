package scan

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/rpc"
)

// FlipRank is one row of the per-flip grade-score leaderboard.
type FlipRank struct {
	Rank            int     `json:"rank"`
	Cid             string  `json:"cid"`
	Author          string  `json:"author"`
	GradeScore      float64 `json:"gradeScore"`
	Grade           int     `json:"grade"`
	Status          string  `json:"status"`
	WrongWordsVotes int     `json:"wrongWordsVotes"`
	Word1           string  `json:"word1"`
	Word2           string  `json:"word2"`
}

// AuthorRank is one row of the per-identity leaderboard: the summed grade
// score of every flip the identity submitted in the epoch.
type AuthorRank struct {
	Rank       int     `json:"rank"`
	Address    string  `json:"address"`
	TotalScore float64 `json:"totalScore"`
	FlipCount  int     `json:"flipCount"`
}

// Leaderboard ranks one epoch's flips and authors by grade score. Authors
// flagged bad for wrong words are excluded and listed so their absence is
// visible.
type Leaderboard struct {
	Epoch           uint64       `json:"epoch"`
	Flips           []FlipRank   `json:"flips"`
	Authors         []AuthorRank `json:"authors"`
	ExcludedAuthors []string     `json:"excludedAuthors"`
}

// BuildLeaderboard fetches one epoch's flips and bad authors and ranks the
// rest by grade score, flips individually and authors by total.
func BuildLeaderboard(ctx context.Context, client rpc.Client, logger *zap.Logger, epoch uint64) (*Leaderboard, error) {
	bad, err := client.EpochBadAuthors(ctx, epoch)
	if err != nil {
		return nil, fmt.Errorf("list bad authors for epoch %d: %w", epoch, err)
	}
	excluded := map[string]bool{}
	for _, b := range bad {
		if b.WrongWords || b.Reason == "WrongWords" {
			excluded[NormalizeAddress(b.Address)] = true
		}
	}

	flips, err := client.EpochFlips(ctx, epoch)
	if err != nil {
		return nil, fmt.Errorf("list flips for epoch %d: %w", epoch, err)
	}

	lb := &Leaderboard{Epoch: epoch, Flips: []FlipRank{}, Authors: []AuthorRank{}}
	for addr := range excluded {
		lb.ExcludedAuthors = append(lb.ExcludedAuthors, addr)
	}
	sort.Strings(lb.ExcludedAuthors)

	totals := map[string]*AuthorRank{}
	skipped := 0
	for _, f := range flips {
		author := NormalizeAddress(f.Author)
		if author == "" || excluded[author] {
			skipped++
			continue
		}
		lb.Flips = append(lb.Flips, FlipRank{
			Cid:             f.Cid,
			Author:          author,
			GradeScore:      f.GradeScore,
			Grade:           f.Grade,
			Status:          f.Status,
			WrongWordsVotes: f.WrongWordsVotes,
			Word1:           f.Words.Word1.Name,
			Word2:           f.Words.Word2.Name,
		})
		t, ok := totals[author]
		if !ok {
			t = &AuthorRank{Address: author}
			totals[author] = t
		}
		t.TotalScore += f.GradeScore
		t.FlipCount++
	}
	if skipped > 0 {
		logger.Info("excluded flips from bad authors",
			zap.Uint64("epoch", epoch),
			zap.Int("flips", skipped),
			zap.Int("authors", len(excluded)))
	}

	sort.Slice(lb.Flips, func(i, j int) bool {
		if lb.Flips[i].GradeScore != lb.Flips[j].GradeScore {
			return lb.Flips[i].GradeScore > lb.Flips[j].GradeScore
		}
		return lb.Flips[i].Cid < lb.Flips[j].Cid
	})
	for i := range lb.Flips {
		lb.Flips[i].Rank = i + 1
	}

	for _, t := range totals {
		lb.Authors = append(lb.Authors, *t)
	}
	sort.Slice(lb.Authors, func(i, j int) bool {
		if lb.Authors[i].TotalScore != lb.Authors[j].TotalScore {
			return lb.Authors[i].TotalScore > lb.Authors[j].TotalScore
		}
		return lb.Authors[i].Address < lb.Authors[j].Address
	})
	for i := range lb.Authors {
		lb.Authors[i].Rank = i + 1
	}

	return lb, nil
}
