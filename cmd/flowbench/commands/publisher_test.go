package commands

import (
	"context"

	"github.com/vnykmshr/flowbench/pkg/report"
	"github.com/vnykmshr/flowbench/pkg/transfer"
)

type publisherFunc func(*transfer.Report)

func (f publisherFunc) Publish(_ context.Context, r *transfer.Report) error {
	f(r)
	return nil
}

func (publisherFunc) Name() string { return "test" }

func countingPublisher(n *int) report.Publisher {
	return publisherFunc(func(*transfer.Report) { *n++ })
}
