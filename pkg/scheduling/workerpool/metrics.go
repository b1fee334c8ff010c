package workerpool

func (p *Pool) setActive(delta int) {
	p.mu.Lock()
	p.activeWorkers += delta
	active := p.activeWorkers
	p.mu.Unlock()

	if p.config.Metrics != nil {
		p.config.Metrics.WorkerPoolActive.WithLabelValues(p.config.Name).Set(float64(active))
	}
}

func (p *Pool) record(result Result) {
	p.mu.Lock()
	p.totalCompleted++
	if result.Error != nil {
		p.totalFailed++
	}
	p.mu.Unlock()

	m := p.config.Metrics
	if m == nil {
		return
	}
	m.TaskExecutionDuration.WithLabelValues(p.config.Name).Observe(result.Duration.Seconds())
	if result.Error != nil {
		m.TasksFailed.WithLabelValues(p.config.Name).Inc()
	} else {
		m.TasksCompleted.WithLabelValues(p.config.Name).Inc()
	}
}
