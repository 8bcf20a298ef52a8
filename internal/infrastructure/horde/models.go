package horde

// asyncRequest is the body of POST /generate/async.
type asyncRequest struct {
	Prompt            string        `json:"prompt"`
	Style             string        `json:"style,omitempty"`
	Models            []string      `json:"models,omitempty"`
	Params            requestParams `json:"params"`
	NSFW              bool          `json:"nsfw"`
	CensorNSFW        bool          `json:"censor_nsfw"`
	TrustedWorkers    bool          `json:"trusted_workers"`
	SlowWorkers       bool          `json:"slow_workers"`
	Shared            bool          `json:"shared"`
	R2                bool          `json:"r2"`
	ReplacementFilter bool          `json:"replacement_filter"`
}

type requestParams struct {
	N              int      `json:"n"`
	Width          int      `json:"width"`
	Height         int      `json:"height"`
	Steps          int      `json:"steps,omitempty"`
	CFGScale       float64  `json:"cfg_scale,omitempty"`
	SamplerName    string   `json:"sampler_name,omitempty"`
	Karras         bool     `json:"karras"`
	PostProcessing []string `json:"post_processing,omitempty"`
}

// asyncResponse is returned by POST /generate/async.
type asyncResponse struct {
	ID      string  `json:"id"`
	Kudos   float64 `json:"kudos"`
	Message string  `json:"message,omitempty"`
}

// checkResponse is returned by GET /generate/check/{id}.
type checkResponse struct {
	Finished      int     `json:"finished"`
	Processing    int     `json:"processing"`
	Restarted     int     `json:"restarted"`
	Waiting       int     `json:"waiting"`
	Done          bool    `json:"done"`
	Faulted       bool    `json:"faulted"`
	WaitTime      int     `json:"wait_time"`
	QueuePosition int     `json:"queue_position"`
	Kudos         float64 `json:"kudos"`
	IsPossible    *bool   `json:"is_possible"`
}

// statusResponse is returned by GET /generate/status/{id}.
type statusResponse struct {
	checkResponse
	Generations []generation `json:"generations"`
}

type generation struct {
	ID         string `json:"id"`
	Img        string `json:"img"`
	Censored   bool   `json:"censored"`
	WorkerName string `json:"worker_name"`
	Model      string `json:"model"`
}
