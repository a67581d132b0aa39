// Package metrics exports Prometheus counters for the provisioning and
// file-transfer workflows.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProvisionStepTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loomspace_provision_step_total",
		Help: "Provisioning step results by step name and outcome.",
	}, []string{"step", "outcome"})

	InvitationAcceptTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loomspace_invitation_accept_total",
		Help: "Invitation acceptance attempts by result.",
	}, []string{"result"})

	FileCopyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "loomspace_file_copy_total",
		Help: "Mindspace to stage file copies by outcome.",
	}, []string{"outcome"})
)

// Handler exposes the default Prometheus registry on a gin route.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
