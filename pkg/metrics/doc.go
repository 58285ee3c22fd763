/*
Package metrics provides Prometheus instrumentation for ipcrawler.

Metrics are defined and registered at package init and exposed via an HTTP
handler for scraping. They cover plugin execution (duration, start/complete/
fail counts by phase and plugin), discovery counts (ports, services), and
resource-limiter permit utilization (global and per-phase), alongside a
Timer helper for recording operation durations.

# Metrics catalog

ipcrawler_plugin_duration_seconds{plugin}: Histogram of plugin Run call
duration.

ipcrawler_tasks_started_total{phase, plugin}: Counter of plugin tasks
started.

ipcrawler_tasks_completed_total{phase, plugin}: Counter of plugin tasks
completed (success or failure).

ipcrawler_tasks_failed_total{phase, plugin}: Counter of plugin tasks that
returned an error.

ipcrawler_ports_discovered_total: Counter of (port, name) pairs reported
by PortScan plugins, counted per plugin before RunState deduplication (a
port reported by two plugins counts twice).

ipcrawler_services_discovered_total: Counter of services reported by
PortScan plugins, counted per plugin before RunState deduplication.

ipcrawler_global_permits_in_use: Gauge of currently held global
concurrency permits.

ipcrawler_phase_permits_in_use{phase}: Gauge of currently held per-phase
concurrency permits.

ipcrawler_run_duration_seconds: Histogram of total run wall-clock
duration.

ipcrawler_runs_total{outcome}: Counter of runs by outcome (completed,
aborted).

# Usage

	timer := metrics.NewTimer()
	_, err := plugin.Run(ctx, target, cfg)
	timer.ObserveDurationVec(metrics.PluginDuration, plugin.Name())

A Collector samples a Limiter's permit pools on an interval so permit
gauges reflect live utilization during a run, not just its end:

	collector := metrics.NewCollector(lim, []string{"reconnaissance", "port_discovery", "service_probing", "vulnerability"})
	collector.Start()
	defer collector.Stop()

Health endpoints (HealthHandler, ReadyHandler, LivenessHandler) report on
three critical components: the resource limiter, the event bus, and the
artifact writer. Register each once it initializes:

	metrics.RegisterComponent("limiter", true, "")
*/
package metrics
