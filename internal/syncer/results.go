package syncer

import (
	"context"
	"time"

	"nicetab/api/internal/kv"
)

const MaxResults = 50

type Outcome string

const (
	Success Outcome = "success"
	Failed  Outcome = "failed"
)

type Result struct {
	SyncType   SyncType    `json:"syncType"`
	SyncTime   int64       `json:"syncTime"`
	SyncResult Outcome     `json:"syncResult"`
	Reason     string      `json:"reason,omitempty"`
	Kind       FailureKind `json:"kind,omitempty"`
}

func (r Result) Time() time.Time {
	return time.UnixMilli(r.SyncTime)
}

type Status string

const (
	Idle    Status = "idle"
	Syncing Status = "syncing"
)

// ResultLog keeps per-backend results under one key, most recent first.
type ResultLog struct {
	kv  kv.Store
	key string
}

func NewResultLog(store kv.Store, key string) *ResultLog {
	return &ResultLog{kv: store, key: key}
}

func (l *ResultLog) Append(ctx context.Context, id string, r Result) error {
	_, err := kv.UpdateJSON(ctx, l.kv, l.key, func(all *map[string][]Result) error {
		if *all == nil {
			*all = map[string][]Result{}
		}
		list := append([]Result{r}, (*all)[id]...)
		if len(list) > MaxResults {
			list = list[:MaxResults]
		}
		(*all)[id] = list
		return nil
	})
	return err
}

func (l *ResultLog) List(ctx context.Context, id string) ([]Result, error) {
	var all map[string][]Result
	if _, err := kv.GetJSON(ctx, l.kv, l.key, &all); err != nil {
		return nil, err
	}
	list := all[id]
	if list == nil {
		list = []Result{}
	}
	return list, nil
}

func (l *ResultLog) Drop(ctx context.Context, id string) error {
	_, err := kv.UpdateJSON(ctx, l.kv, l.key, func(all *map[string][]Result) error {
		delete(*all, id)
		return nil
	})
	return err
}

// StatusLog persists the idle/syncing state of each backend.
type StatusLog struct {
	kv  kv.Store
	key string
}

func NewStatusLog(store kv.Store, key string) *StatusLog {
	return &StatusLog{kv: store, key: key}
}

func (l *StatusLog) Set(ctx context.Context, id string, status Status) error {
	_, err := kv.UpdateJSON(ctx, l.kv, l.key, func(all *map[string]Status) error {
		if *all == nil {
			*all = map[string]Status{}
		}
		(*all)[id] = status
		return nil
	})
	return err
}

func (l *StatusLog) Get(ctx context.Context, id string) (Status, error) {
	var all map[string]Status
	if _, err := kv.GetJSON(ctx, l.kv, l.key, &all); err != nil {
		return "", err
	}
	if status, ok := all[id]; ok {
		return status, nil
	}
	return Idle, nil
}

func (l *StatusLog) Drop(ctx context.Context, id string) error {
	_, err := kv.UpdateJSON(ctx, l.kv, l.key, func(all *map[string]Status) error {
		delete(*all, id)
		return nil
	})
	return err
}
