package bcfy

import "fmt"

const mediaBaseURL = "https://calls.broadcastify.com"

// Call is one recorded transmission's metadata as returned by the calls
// platform. Values are immutable once decoded.
type Call struct {
	ID            int64  `json:"id"`
	SystemID      int    `json:"systemId"`
	Talkgroup     int    `json:"call_tg"`
	StartTime     int64  `json:"ts"`
	Duration      int    `json:"call_duration"`
	Filename      string `json:"filename"`
	Hash          string `json:"hash"`
	TalkgroupName string `json:"display"`
	TalkgroupDesc string `json:"grouping"`
	SourceRadioID int64  `json:"call_src"`
}

// MediaURL derives the CDN location of the call's audio file. Pure; no
// network access.
func (c Call) MediaURL() string {
	return fmt.Sprintf("%s/%s/%d/%s.mp3", mediaBaseURL, c.Hash, c.SystemID, c.Filename)
}

// Same reports whether o identifies the same call. Call IDs are not
// globally unique, so identity requires the talkgroup to match as well.
func (c Call) Same(o Call) bool {
	return c.ID == o.ID && c.Talkgroup == o.Talkgroup
}

// After reports whether c sorts strictly after o in (StartTime, ID)
// order. Start times alone are not a total order; two calls can share
// one, so the ID breaks ties.
func (c Call) After(o Call) bool {
	if c.StartTime != o.StartTime {
		return c.StartTime > o.StartTime
	}
	return c.ID > o.ID
}

// ArchiveResult is one archived block's calls plus the server-confirmed
// block boundaries, both unix seconds.
type ArchiveResult struct {
	Calls []Call
	Start int64
	End   int64
}

// archiveResponse mirrors /calls/apis/archivecall.php. The calls key is
// mandatory; its absence means the response shape drifted.
type archiveResponse struct {
	Calls *[]Call `json:"calls"`
	Start int64   `json:"start"`
	End   int64   `json:"end"`
}

// liveResponse mirrors /calls/ajax/update. A missing calls key is a
// normal empty update, matching the server's observed behavior.
type liveResponse struct {
	Calls []Call `json:"calls"`
}
