package rpc

// FlipSummary is one entry of the /Epoch/{epoch}/Flips list.
// NOTE: the API returns more fields; we keep the ones the scanner and the
// leaderboard consume.
type FlipSummary struct {
	Cid             string    `json:"cid"`
	Author          string    `json:"author"`
	Epoch           uint64    `json:"epoch"`
	Status          string    `json:"status"`
	Answer          string    `json:"answer"`
	WrongWords      bool      `json:"wrongWords"`
	WrongWordsVotes int       `json:"wrongWordsVotes"`
	Grade           int       `json:"grade"`
	GradeScore      float64   `json:"gradeScore"`
	WithPrivatePart bool      `json:"withPrivatePart"`
	Words           FlipWords `json:"words"`
}

// FlipDetail is the /Flip/{cid} response.
type FlipDetail struct {
	Cid             string  `json:"cid"`
	Author          string  `json:"author"`
	Epoch           uint64  `json:"epoch"`
	Status          string  `json:"status"`
	Answer          string  `json:"answer"`
	WrongWords      bool    `json:"wrongWords"`
	WrongWordsVotes int     `json:"wrongWordsVotes"`
	Grade           int     `json:"grade"`
	GradeScore      float64 `json:"gradeScore"`
}

// FlipWords carries the two keywords a flip was built from.
type FlipWords struct {
	Word1 FlipWord `json:"word1"`
	Word2 FlipWord `json:"word2"`
}

type FlipWord struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
}

// EpochRef is the /Epoch/Last response.
type EpochRef struct {
	Epoch          uint64 `json:"epoch"`
	ValidationTime string `json:"validationTime"`
}

// BadAuthor is one entry of the /Epoch/{epoch}/Authors/Bad list.
type BadAuthor struct {
	Address    string `json:"address"`
	Epoch      uint64 `json:"epoch"`
	WrongWords bool   `json:"wrongWords"`
	Reason     string `json:"reason"`
}
