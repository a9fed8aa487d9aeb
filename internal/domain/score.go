package domain

// ScoreKind selects one of the two ledger counters
type ScoreKind string

const (
	ScoreShot     ScoreKind = "shot"
	ScoreBefriend ScoreKind = "befriend"
)

// Valid reports whether k names a known counter
func (k ScoreKind) Valid() bool {
	return k == ScoreShot || k == ScoreBefriend
}

// ScoreRecord is one row of the score ledger
type ScoreRecord struct {
	Network  string `json:"network"`
	Channel  string `json:"channel"`
	Name     string `json:"name"`
	Shot     int64  `json:"shot"`
	Befriend int64  `json:"befriend"`
}

// Count returns the counter selected by kind
func (r ScoreRecord) Count(kind ScoreKind) int64 {
	if kind == ScoreBefriend {
		return r.Befriend
	}
	return r.Shot
}

// ScoreFilter selects ledger rows. Empty fields match everything.
type ScoreFilter struct {
	Network string
	Channel string
	Name    string
}

// MergeResult reports what a merge moved
type MergeResult struct {
	Network  string   `json:"network"`
	OldName  string   `json:"old_name"`
	NewName  string   `json:"new_name"`
	Shot     int64    `json:"shot"`
	Befriend int64    `json:"befriend"`
	Channels []string `json:"channels"`
}

// RankEntry is one ranked (key, value) pair
type RankEntry struct {
	Rank  int    `json:"rank"`
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// RankingMode selects how network rankings are computed
type RankingMode string

const (
	RankingPerUser RankingMode = "user"
	RankingTotal   RankingMode = "total"
	RankingAverage RankingMode = "average"
)

// ChannelAverage is a network's per-channel average of one counter. Only
// channels with a nonzero total count towards Channels.
type ChannelAverage struct {
	Kind     ScoreKind `json:"kind"`
	Total    int64     `json:"total"`
	Channels int       `json:"channels"`
	Average  int64     `json:"average"`
}

// PlayerStats summarises a user's scores across a network
type PlayerStats struct {
	Network         string `json:"network"`
	Name            string `json:"name"`
	Channel         string `json:"channel"`
	ChannelShot     int64  `json:"channel_shot"`
	ChannelBefriend int64  `json:"channel_befriend"`
	Shot            int64  `json:"shot"`
	Befriend        int64  `json:"befriend"`
	Channels        int    `json:"channels"`
	AverageShot     int64  `json:"average_shot"`
	AverageBefriend int64  `json:"average_befriend"`
}

// NetworkStats summarises a network's scores
type NetworkStats struct {
	Network          string     `json:"network"`
	Channel          string     `json:"channel"`
	ChannelShot      int64      `json:"channel_shot"`
	ChannelBefriend  int64      `json:"channel_befriend"`
	Shot             int64      `json:"shot"`
	Befriend         int64      `json:"befriend"`
	Channels         int        `json:"channels"`
	AverageShot      int64      `json:"average_shot"`
	AverageBefriend  int64      `json:"average_befriend"`
	TopShotChannel   *RankEntry `json:"top_shot_channel,omitempty"`
	TopFriendChannel *RankEntry `json:"top_friend_channel,omitempty"`
}
