package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "organograma_auth_login_attempts_total",
	Help: "Password logins by result",
}, []string{"result"})
