package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/idena-watch/flipwatch/pkg/scan"
)

// WriteEpochCSV renders one epoch report as `address,wrongWordsCount` rows in
// report order. Unresolved flips are appended as comment-style trailer rows so
// the file carries its own completeness information.
func WriteEpochCSV(w io.Writer, report *scan.EpochReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"address", "wrongWordsCount"}); err != nil {
		return err
	}
	for _, e := range report.Entries {
		if err := cw.Write([]string{e.Address, strconv.Itoa(e.Count)}); err != nil {
			return err
		}
	}
	for _, cid := range report.UnresolvedFlips {
		if err := cw.Write([]string{"#unresolved", cid}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteWindowCSV renders the master summary: one `epoch,address,count` row
// per entry across every scanned epoch, plus a trailer row per skipped epoch.
func WriteWindowCSV(w io.Writer, report *scan.WindowReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"epoch", "address", "wrongWordsCount"}); err != nil {
		return err
	}
	for _, er := range report.Reports {
		for _, e := range er.Entries {
			if err := cw.Write([]string{strconv.FormatUint(er.Epoch, 10), e.Address, strconv.Itoa(e.Count)}); err != nil {
				return err
			}
		}
	}
	for _, epoch := range report.SkippedEpochs {
		if err := cw.Write([]string{strconv.FormatUint(epoch, 10), "#skipped", ""}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFlipLeaderboardCSV renders the per-flip grade-score ranking.
func WriteFlipLeaderboardCSV(w io.Writer, lb *scan.Leaderboard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "cid", "author", "gradeScore", "grade", "status", "wrongWordsVotes", "word1", "word2"}); err != nil {
		return err
	}
	for _, f := range lb.Flips {
		row := []string{
			strconv.Itoa(f.Rank),
			f.Cid,
			f.Author,
			strconv.FormatFloat(f.GradeScore, 'f', -1, 64),
			strconv.Itoa(f.Grade),
			f.Status,
			strconv.Itoa(f.WrongWordsVotes),
			f.Word1,
			f.Word2,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteAuthorLeaderboardCSV renders the per-identity grade-score ranking.
func WriteAuthorLeaderboardCSV(w io.Writer, lb *scan.Leaderboard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "address", "totalGradeScore", "flipCount"}); err != nil {
		return err
	}
	for _, a := range lb.Authors {
		row := []string{
			strconv.Itoa(a.Rank),
			a.Address,
			strconv.FormatFloat(a.TotalScore, 'f', -1, 64),
			strconv.Itoa(a.FlipCount),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// EpochCSVPath returns the per-epoch CSV filename inside dir.
func EpochCSVPath(dir string, epoch uint64) string {
	return filepath.Join(dir, fmt.Sprintf("wrongwords_epoch%d.csv", epoch))
}

// EpochJSONLPath returns the per-epoch JSONL filename inside dir.
func EpochJSONLPath(dir string, epoch uint64) string {
	return filepath.Join(dir, fmt.Sprintf("wrongwords_epoch%d.jsonl", epoch))
}

// WindowCSVPath returns the master summary filename inside dir.
func WindowCSVPath(dir string) string {
	return filepath.Join(dir, "wrongwords_summary.csv")
}

// WriteFile writes one rendered report to disk, creating dir if needed.
func WriteFile(path string, render func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
