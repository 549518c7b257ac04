// Package web serves the rebalance dashboard: an HTML page, a JSON history
// endpoint and an SSE stream of cycle results.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/suenot/etf-monitor/internal/domain"
)

const (
	resultPollInterval = 2 * time.Second
	heartbeatInterval  = 30 * time.Second
)

type resultReader interface {
	ResultsAfter(index uint64) ([]domain.RebalanceRecord, error)
}

type stateReader interface {
	State() string
}

// Server exposes HTTP endpoints serving the HTML UI and an SSE stream.
type Server struct {
	addr   string
	store  resultReader
	state  stateReader
	logger *zap.Logger
}

// NewServer creates a new dashboard server. The state reader may be nil.
func NewServer(addr string, store resultReader, state stateReader, logger *zap.Logger) *Server {
	return &Server{addr: addr, store: store, state: state, logger: logger}
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", zap.String("addr", s.addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/rebalances/stream", s.handleResultStream)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	state := "unknown"
	if s.state != nil {
		state = s.state.State()
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"state": state})
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	if s.store == nil {
		http.Error(w, "result store not available", http.StatusServiceUnavailable)
		return
	}

	records, err := s.store.ResultsAfter(0)
	if err != nil {
		s.logger.Error("failed to load rebalance history", zap.Error(err))
		http.Error(w, "failed to load history", http.StatusInternalServerError)
		return
	}

	results := make([]domain.RebalanceResult, 0, len(records))
	for _, record := range records {
		results = append(results, record.Result)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(results)
}

func (s *Server) handleResultStream(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "result store not available", http.StatusServiceUnavailable)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// comment heartbeats keep proxies from dropping the connection
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	poll := time.NewTicker(resultPollInterval)
	defer poll.Stop()

	lastIndex := uint64(0)
	sendResults := func() error {
		records, err := s.store.ResultsAfter(lastIndex)
		if err != nil {
			return err
		}
		for _, record := range records {
			payload, err := json.Marshal(record.Result)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "event: rebalance\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendResults(); err != nil {
		s.logger.Error("rebalance stream initial load failed", zap.Error(err))
		http.Error(w, "failed to load results", http.StatusInternalServerError)
		return
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-poll.C:
			if err := sendResults(); err != nil {
				s.logger.Warn("rebalance stream poll failed", zap.Error(err))
			}
		}
	}
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>ETF Monitor</title>
  <style>
    :root {
      --bg:#ffffff;
      --ink:#111111;
      --ink-mid:#4d4d4d;
      --panel:#f6f6f6;
    }
    * { box-sizing:border-box; }
    body {
      margin:0;
      padding:2rem;
      background:var(--bg);
      color:var(--ink);
      font-family:'JetBrains Mono','Space Mono',monospace;
    }
    #app {
      max-width:1100px;
      margin:0 auto;
      background:var(--panel);
      border:3px solid var(--ink);
      padding:2rem;
      box-shadow:12px 12px 0 rgba(0,0,0,.15);
    }
    header { display:flex; justify-content:space-between; align-items:center; margin-bottom:1.5rem; }
    h1 { font-size:1rem; text-transform:uppercase; letter-spacing:.2em; margin:0; }
    .status {
      font-size:.7rem;
      text-transform:uppercase;
      letter-spacing:.1em;
      border:2px solid var(--ink);
      padding:.4rem .9rem;
      background:#fff;
    }
    table { width:100%; border-collapse:collapse; background:#fff; border:2px solid var(--ink); }
    th, td { padding:.6rem .8rem; border-bottom:1px solid rgba(0,0,0,.15); font-size:.75rem; text-align:left; }
    th { text-transform:uppercase; letter-spacing:.1em; font-size:.6rem; color:var(--ink-mid); }
    .tag { padding:.15rem .5rem; border:2px solid var(--ink); font-size:.6rem; text-transform:uppercase; }
    .tag.balanced { border-color:#1b9aaa; color:#1b9aaa; }
    .tag.executed { border-color:#111111; }
    .tag.aborted { border-color:#ff7f11; color:#ff7f11; }
    .tag.rejected { border-color:#d7263d; color:#d7263d; }
    .empty { padding:2rem; text-align:center; color:var(--ink-mid); font-size:.8rem; }
  </style>
</head>
<body>
  <div id="app">
    <header>
      <h1>etf monitor</h1>
      <div id="sse-status" class="status">Connecting…</div>
    </header>
    <table>
      <thead>
        <tr><th>Time</th><th>Status</th><th>Operations</th><th>Success</th><th>Remainder</th><th>Reason</th></tr>
      </thead>
      <tbody id="rows">
        <tr><td colspan="6" class="empty">Waiting for rebalance cycles…</td></tr>
      </tbody>
    </table>
  </div>
<script>
const statusEl = document.getElementById('sse-status');
const rowsEl = document.getElementById('rows');
let hasRows = false;

function formatTs(ts){
  const date = new Date(ts);
  return Number.isNaN(date.getTime()) ? '' : date.toLocaleString([], { hour12:false });
}

function addRow(result){
  if(!hasRows){ rowsEl.innerHTML = ''; hasRows = true; }
  const row = document.createElement('tr');

  const cells = [
    formatTs(result.ts),
    null,
    String(result.total_count || 0),
    (result.success_count || 0) + '/' + (result.total_count || 0),
    result.uninvested_remainder || '0',
    result.reason || ''
  ];
  cells.forEach((text, i) => {
    const td = document.createElement('td');
    if(i === 1){
      const tag = document.createElement('span');
      tag.className = 'tag ' + result.status;
      tag.textContent = result.status;
      td.appendChild(tag);
    } else {
      td.textContent = text;
    }
    row.appendChild(td);
  });
  rowsEl.insertBefore(row, rowsEl.firstChild);
  while(rowsEl.children.length > 100){
    rowsEl.removeChild(rowsEl.lastChild);
  }
}

function connectSSE(){
  const source = new EventSource('/rebalances/stream');
  statusEl.textContent = 'Live';
  source.addEventListener('rebalance', (event) => {
    try{ addRow(JSON.parse(event.data)); }
    catch(err){ console.error('payload parse', err); }
  });
  source.addEventListener('error', () => {
    statusEl.textContent = 'Reconnecting…';
    source.close();
    setTimeout(connectSSE, 2000);
  });
}

connectSSE();

setInterval(() => {
  fetch('/api/status').then(r => r.json()).then(data => {
    if(data.state){ statusEl.textContent = data.state; }
  }).catch(() => {});
}, 5000);
</script>
</body>
</html>`
