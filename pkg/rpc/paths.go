package rpc

import "fmt"

// Idena indexer API paths.
// All paths are consolidated here so endpoint changes touch a single file.

const (
	lastEpochPath = "/Epoch/Last"

	// DefaultBaseURL is the public Idena indexer API.
	DefaultBaseURL = "https://api.idena.io/api"

	// DefaultPageLimit is the page size used for paged list endpoints.
	DefaultPageLimit = 100
)

func epochFlipsPath(epoch uint64) string {
	return fmt.Sprintf("/Epoch/%d/Flips", epoch)
}

func epochBadAuthorsPath(epoch uint64) string {
	return fmt.Sprintf("/Epoch/%d/Authors/Bad", epoch)
}

func flipPath(cid string) string {
	return "/Flip/" + cid
}
