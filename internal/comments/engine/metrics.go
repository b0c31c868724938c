package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pageFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_page_fetches_total",
		Help: "Top-level page fetches by result.",
	}, []string{"result"})

	replyLoads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_reply_loads_total",
		Help: "Reply loads by trigger and result.",
	}, []string{"trigger", "result"})

	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "comments_mutations_total",
		Help: "Comment mutations by operation and result.",
	}, []string{"op", "result"})
)

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
