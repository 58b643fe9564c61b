// Package config maps environment variables onto the layout subsystem's
// configuration structs. Unset variables keep the package defaults.
package config

import (
	"github.com/localwebb/backend/internal/util"
	"github.com/localwebb/backend/pkg/layout"
	"github.com/localwebb/backend/pkg/leaselock"
	"github.com/localwebb/backend/pkg/render"
	"github.com/localwebb/backend/pkg/scheduler"
	"github.com/localwebb/backend/pkg/sink"
	"github.com/localwebb/backend/pkg/store"
	"github.com/localwebb/backend/pkg/view"
)

func LayoutParams() layout.Params {
	d := layout.DefaultParams()
	p := d
	p.Iterations = util.GetEnvInt("LAYOUT_ITERATIONS", d.Iterations)
	p.LinkDistance = util.GetEnvFloat("LAYOUT_LINK_DISTANCE", d.LinkDistance)
	p.LinkStrength = util.GetEnvFloat("LAYOUT_LINK_STRENGTH", d.LinkStrength)
	p.ChargeStrength = util.GetEnvFloat("LAYOUT_CHARGE_STRENGTH", d.ChargeStrength)
	p.ChargeDistanceMax = util.GetEnvFloat("LAYOUT_CHARGE_DISTANCE_MAX", d.ChargeDistanceMax)
	p.Theta = util.GetEnvFloat("LAYOUT_THETA", d.Theta)
	p.BarnesHutThreshold = util.GetEnvInt("LAYOUT_BARNES_HUT_THRESHOLD", d.BarnesHutThreshold)
	p.CenterStrength = util.GetEnvFloat("LAYOUT_CENTER_STRENGTH", d.CenterStrength)
	p.CollisionStrength = util.GetEnvFloat("LAYOUT_COLLISION_STRENGTH", d.CollisionStrength)
	p.CollisionPadding = util.GetEnvFloat("LAYOUT_COLLISION_PADDING", d.CollisionPadding)
	p.RadialStrength = util.GetEnvFloat("LAYOUT_RADIAL_STRENGTH", d.RadialStrength)
	p.AlphaMin = util.GetEnvFloat("LAYOUT_ALPHA_MIN", d.AlphaMin)
	p.VelocityDecay = util.GetEnvFloat("LAYOUT_VELOCITY_DECAY", d.VelocityDecay)
	p.Tiers.Hub = util.GetEnvInt("LAYOUT_HUB_DEGREE", d.Tiers.Hub)
	p.Tiers.Medium = util.GetEnvInt("LAYOUT_MEDIUM_DEGREE", d.Tiers.Medium)
	return p.Normalize()
}

func Scheduler() scheduler.Config {
	d := scheduler.DefaultConfig()
	return scheduler.Config{
		Threshold:        util.GetEnvInt("LAYOUT_SYNC_THRESHOLD", d.Threshold),
		CancelSuperseded: util.GetEnvBool("LAYOUT_WORKER_CANCEL", d.CancelSuperseded),
		Params:           LayoutParams(),
	}
}

func Sink() sink.Config {
	d := sink.DefaultConfig()
	return sink.Config{
		ChunkSize:   util.GetEnvInt("SINK_CHUNK_SIZE", d.ChunkSize),
		MaxTries:    util.GetEnvInt("SINK_MAX_TRIES", d.MaxTries),
		Backoff:     util.GetEnvDuration("SINK_BACKOFF", d.Backoff),
		Concurrency: util.GetEnvInt("SINK_CONCURRENCY", d.Concurrency),
		Timeout:     util.GetEnvDuration("SINK_TIMEOUT", d.Timeout),
	}
}

func ViewPolicy() view.Policy {
	d := view.DefaultPolicy()
	return view.Policy{
		RespectSavedLayout: util.GetEnvBool("LAYOUT_RESPECT_SAVED", d.RespectSavedLayout),
		RelayoutOnFilter:   util.GetEnvBool("LAYOUT_RELAYOUT_ON_FILTER", d.RelayoutOnFilter),
	}
}

func Render() render.Config {
	c := render.DefaultConfig()
	c.Tiers = LayoutParams().Tiers
	c.Detail.MinEdgeZoom = util.GetEnvFloat("VIEW_MIN_EDGE_ZOOM", c.Detail.MinEdgeZoom)
	c.Detail.MaxLabelledEdges = util.GetEnvInt("VIEW_MAX_LABELLED_EDGES", c.Detail.MaxLabelledEdges)
	c.Detail.MaxMinimapNodes = util.GetEnvInt("VIEW_MAX_MINIMAP_NODES", c.Detail.MaxMinimapNodes)
	return c
}

func Lease() leaselock.Options {
	d := leaselock.DefaultOptions()
	d.TTL = util.GetEnvDuration("LAYOUT_LEASE_TTL", d.TTL)
	d.RenewEvery = util.GetEnvDuration("LAYOUT_LEASE_RENEW", d.RenewEvery)
	return d
}

func GraphID() string {
	return util.GetEnvString("GRAPH_ID", store.DefaultGraphID)
}
