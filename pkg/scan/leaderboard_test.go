package scan

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/idena-watch/flipwatch/pkg/rpc"
)

func TestBuildLeaderboard_RanksByGradeScore(t *testing.T) {
	fc := newFakeClient()
	fc.flips[7] = []rpc.FlipSummary{
		{Cid: "c1", Author: "0xAA", GradeScore: 3.5, Grade: 4, Status: "Qualified"},
		{Cid: "c2", Author: "0xBB", GradeScore: 4.8, Grade: 5, Status: "StronglyQualified"},
		{Cid: "c3", Author: "0xAA", GradeScore: 2.0, Grade: 2, Status: "Qualified"},
	}

	lb, err := BuildLeaderboard(context.Background(), fc, zap.NewNop(), 7)
	require.NoError(t, err)

	require.Len(t, lb.Flips, 3)
	assert.Equal(t, []string{"c2", "c1", "c3"}, []string{lb.Flips[0].Cid, lb.Flips[1].Cid, lb.Flips[2].Cid})
	assert.Equal(t, 1, lb.Flips[0].Rank)
	assert.Equal(t, 3, lb.Flips[2].Rank)

	require.Len(t, lb.Authors, 2)
	assert.Equal(t, "0xaa", lb.Authors[0].Address)
	assert.InDelta(t, 5.5, lb.Authors[0].TotalScore, 1e-9)
	assert.Equal(t, 2, lb.Authors[0].FlipCount)
	assert.Equal(t, "0xbb", lb.Authors[1].Address)
}

func TestBuildLeaderboard_ExcludesBadAuthors(t *testing.T) {
	fc := newFakeClient()
	fc.flips[7] = []rpc.FlipSummary{
		{Cid: "c1", Author: "0xAA", GradeScore: 3.0},
		{Cid: "c2", Author: "0xBB", GradeScore: 9.9},
	}
	fc.badAuthors[7] = []rpc.BadAuthor{
		{Address: "0xBB", WrongWords: true},
		{Address: "0xCC", Reason: "WrongWords"},
		{Address: "0xDD", Reason: "NoQualifiedFlips"},
	}

	lb, err := BuildLeaderboard(context.Background(), fc, zap.NewNop(), 7)
	require.NoError(t, err)

	assert.Equal(t, []string{"0xbb", "0xcc"}, lb.ExcludedAuthors)
	require.Len(t, lb.Flips, 1)
	assert.Equal(t, "c1", lb.Flips[0].Cid)
	require.Len(t, lb.Authors, 1)
	assert.Equal(t, "0xaa", lb.Authors[0].Address)
}

func TestBuildLeaderboard_EmptyEpoch(t *testing.T) {
	lb, err := BuildLeaderboard(context.Background(), newFakeClient(), zap.NewNop(), 7)
	require.NoError(t, err)
	assert.Empty(t, lb.Flips)
	assert.Empty(t, lb.Authors)
	assert.Empty(t, lb.ExcludedAuthors)
}
