package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthLogins counts login attempts by outcome.
	AuthLogins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_auth_logins_total",
		Help: "Login attempts by result.",
	}, []string{"result"})

	// AuthRefreshes counts refresh calls by outcome.
	AuthRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gallery_auth_refreshes_total",
		Help: "Token refresh calls by result.",
	}, []string{"result"})

	ImagesUploaded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "gallery_images_uploaded_total",
		Help: "Images stored.",
	})
)
