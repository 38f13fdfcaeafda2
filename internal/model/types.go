// Package model holds the plain data types shared across the simulation
// core and its persistence layer. Types here carry no behavior beyond small
// accessors; the classification and rate logic that acts on them lives in
// internal/network, internal/tweetbank and internal/rate.
package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// AgentID is a stable integer identifier assigned at agent creation.
type AgentID int32

// TweetID is a monotonically increasing tweet identifier.
type TweetID int64

// SimTime is simulated time measured in minutes since the run began.
type SimTime float64

// AgentRecord is the persisted, network-independent view of an agent: the
// live network.Agent additionally holds its follow/follower RateTree
// membership, which is rebuilt from FollowSet on snapshot load rather than
// serialized directly.
type AgentRecord struct {
	ID              AgentID         `json:"id"`
	Type            AgentType       `json:"type"`
	Region          Region          `json:"region"`
	Language        Language        `json:"language"`
	Ideology        Ideology        `json:"ideology"`
	PreferenceClass PreferenceClass `json:"preference_class"`
	CreationTime    SimTime         `json:"creation_time"`
	TweetCount      int             `json:"tweet_count"`
	RetweetCount    int             `json:"retweet_count"`
	FollowSet       []AgentID       `json:"follow_set"`
	RecentRetweets  []RetweetEntry  `json:"recent_retweets"`
}

// RetweetEntry is one slot of an agent's bounded recent-retweet ring buffer.
type RetweetEntry struct {
	OriginalTweeter AgentID `json:"original_tweeter"`
	At              SimTime `json:"at"`
}

// TweetRecord is the persisted view of a live tweet.
type TweetRecord struct {
	ID            TweetID     `json:"id"`
	TweeterID     AgentID     `json:"tweeter_id"`
	ContentType   ContentType `json:"content_type"`
	Ideology      Ideology    `json:"ideology"`
	CreationTime  SimTime     `json:"creation_time"`
	AgeBin        int         `json:"age_bin"`
	NextRebinTime SimTime     `json:"next_rebin_time"`
	BaseRate      float64     `json:"base_rate"`
}

// RunStats holds the running totals RateAggregator and KmcLoop maintain and
// that the output sink and snapshot both observe.
type RunStats struct {
	StepCount        int64   `json:"step_count"`
	NAgents          int64   `json:"n_agents"`
	NFollows         int64   `json:"n_follows"`
	NTweets          int64   `json:"n_tweets"`
	NRetweets        int64   `json:"n_retweets"`
	FollowRejections int64   `json:"follow_rejections"`
	Time             SimTime `json:"time"`
}

// RunSnapshot is the self-describing, restartable state of one simulation
// run. ConfigHash lets a reload detect a mismatched configuration (spec §6).
type RunSnapshot struct {
	VersionedRecord
	RunID      string        `json:"run_id"`
	ConfigHash string        `json:"config_hash"`
	Time       SimTime       `json:"time"`
	NextTweet  TweetID       `json:"next_tweet_id"`
	Agents     []AgentRecord `json:"agents"`
	Tweets     []TweetRecord `json:"tweets"`
	Stats      RunStats      `json:"stats"`
}
