package daemon

import (
	"context"
	"fmt"
	"time"

	"github.com/npratt/linkwatch/internal/history"
)

// stopDelay lets the stop response reach the client before shutdown.
const stopDelay = 100 * time.Millisecond

func (d *Daemon) handleRequest(ctx context.Context, req *Request) Response {
	switch req.Method {
	case MethodStatus:
		return d.handleStatus()
	case MethodHistory:
		return d.handleHistory(req)
	case MethodClearHistory:
		return d.handleClearHistory()
	case MethodReload:
		return d.handleReload(ctx)
	case MethodStop:
		return d.handleStop()
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

func (d *Daemon) handleStatus() Response {
	if d.opts.Supervisor == nil {
		return Response{Error: "no supervisor available"}
	}

	startTime := d.StartTime()
	status := StatusResponse{
		Supervisor: d.opts.Supervisor.Snapshot(),
		Uptime:     time.Since(startTime).Truncate(time.Second).String(),
		StartTime:  startTime.Format(time.RFC3339),
	}
	if d.opts.History != nil {
		status.HistorySize = d.opts.History.Len()
		if e, ok := d.opts.History.LastSuccessful(); ok {
			status.LastConnection = &e
		}
	}
	if d.opts.Notifier != nil {
		st := d.opts.Notifier.Stats()
		status.Notifications = &st
	}
	return Response{Result: status}
}

func (d *Daemon) handleHistory(req *Request) Response {
	if d.opts.History == nil {
		return Response{Error: "no history available"}
	}
	var params HistoryParams
	if err := decodeParams(req.Params, &params); err != nil {
		return Response{Error: err.Error()}
	}

	total := d.opts.History.Len()
	if params.SSID == "" {
		return Response{Result: HistoryResponse{Entries: d.opts.History.History(params.Limit), Total: total}}
	}

	limit := params.Limit
	if limit <= 0 {
		limit = history.DefaultDisplayLimit
	}
	entries := make([]history.Entry, 0, limit)
	for _, e := range d.opts.History.History(total) {
		if e.SSID != params.SSID {
			continue
		}
		entries = append(entries, e)
		if len(entries) == limit {
			break
		}
	}
	return Response{Result: HistoryResponse{Entries: entries, Total: total}}
}

func (d *Daemon) handleClearHistory() Response {
	if d.opts.History == nil {
		return Response{Error: "no history available"}
	}
	d.opts.History.Clear()
	d.logger.Info("history cleared via rpc")
	return Response{Result: "cleared"}
}

func (d *Daemon) handleReload(ctx context.Context) Response {
	if d.opts.Reload == nil {
		return Response{Error: "reload not supported"}
	}
	n, err := d.opts.Reload(ctx, "rpc")
	if err != nil {
		return Response{Error: fmt.Sprintf("reload failed: %v", err)}
	}
	return Response{Result: ReloadResponse{Networks: n}}
}

func (d *Daemon) handleStop() Response {
	if d.opts.Stop == nil {
		return Response{Error: "stop not supported"}
	}
	d.logger.Info("stop requested via rpc")
	go func() {
		time.Sleep(stopDelay)
		d.opts.Stop()
	}()
	return Response{Result: "stopping"}
}
