package server

import (
	"encoding/json"
	"net/http"
	"time"

	"sonagent/internal/agent"
	"sonagent/internal/llm"
	"sonagent/internal/logging"
	"sonagent/internal/memory"
	"sonagent/internal/textutil"
)

// serviceVersion is reported by the root card.
const serviceVersion = "2.0"

const detailSessionNotFound = "Session không tồn tại"

// agentNames lists every agent with its own history bucket, in the order
// the memory endpoint reports them.
var agentNames = []string{
	agent.TypeClassifier,
	agent.TypeCreateOrder,
	agent.TypeConsulting,
	agent.TypeCheckOrder,
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.ServerError("write response: %v", err)
	}
}

// writeDetail sends an error body in the {"detail": ...} shape every
// non-2xx response uses.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// decodeBody parses the JSON request body into dst. Malformed payloads are
// reported like validation failures.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "body: JSON không hợp lệ")
		return false
	}
	return true
}

// history loads the stored conversation for one agent as model turns.
// Without a session the conversation is stateless.
func (s *Server) history(sessionID, agentName string) []llm.Message {
	if sessionID == "" {
		return nil
	}
	entries := s.mem.History(sessionID, agentName)
	msgs := make([]llm.Message, 0, len(entries))
	for _, e := range entries {
		msgs = append(msgs, llm.Message{Role: e.Role, Content: e.Content})
	}
	return msgs
}

// remember appends the exchanged pair to the session, when one is set.
func (s *Server) remember(sessionID, agentName, input, output string) {
	if sessionID == "" {
		return
	}
	s.mem.Add(sessionID, agentName, memory.RoleUser, input)
	s.mem.Add(sessionID, agentName, memory.RoleAssistant, output)
}

// serveAgent runs one conversational turn for an agent: decode and
// validate the request, read the history, invoke, persist the pair and
// reply with the timing.
func (s *Server) serveAgent(w http.ResponseWriter, r *http.Request, agentName string, invoke func(req *AgentRequest, history []llm.Message) (string, error)) {
	var req AgentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	start := time.Now()
	history := s.history(req.SessionID, agentName)
	output, err := invoke(&req, history)
	logging.AuditAgent(agentName, req.SessionID, requestIDFrom(r.Context()), len([]rune(req.Input)), time.Since(start), err)
	if err != nil {
		logging.ServerError("agent %s failed: %v", agentName, err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.remember(req.SessionID, agentName, req.Input, output)

	writeJSON(w, http.StatusOK, AgentResponse{
		Output:         output,
		SessionID:      req.SessionID,
		ProcessingTime: time.Since(start).Seconds(),
	})
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	s.serveAgent(w, r, agent.TypeClassifier, func(req *AgentRequest, history []llm.Message) (string, error) {
		output, err := s.svc.Classify(r.Context(), req.Input, history)
		if err != nil {
			return "", err
		}
		// The n8n switch node downstream needs parseable JSON, always.
		if !json.Valid([]byte(output)) {
			output = textutil.UnknownIntent
		}
		return output, nil
	})
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	s.serveAgent(w, r, agent.TypeCreateOrder, func(req *AgentRequest, history []llm.Message) (string, error) {
		return s.svc.CreateOrder(r.Context(), req.Input, history)
	})
}

func (s *Server) handleConsulting(w http.ResponseWriter, r *http.Request) {
	s.serveAgent(w, r, agent.TypeConsulting, func(req *AgentRequest, history []llm.Message) (string, error) {
		// The session doubles as the customer key so profile context and
		// search dedup both follow the conversation.
		return s.svc.Consult(r.Context(), req.Input, history, req.SessionID, req.SessionID)
	})
}

func (s *Server) handleCheckOrder(w http.ResponseWriter, r *http.Request) {
	var req CheckOrderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if !s.svc.HasOrders() {
		writeDetail(w, http.StatusServiceUnavailable, "Tính năng tra cứu đơn hàng chưa sẵn sàng (thiếu credentials.json)")
		return
	}

	start := time.Now()
	history := s.history(req.SessionID, agent.TypeCheckOrder)
	output, err := s.svc.CheckOrder(r.Context(), req.Input, history, req.SpreadsheetID)
	logging.AuditOrderLookup(s.svc.Orders().SourceName(), req.SessionID, requestIDFrom(r.Context()), len([]rune(req.Input)), time.Since(start), err)
	if err != nil {
		logging.ServerError("agent %s failed: %v", agent.TypeCheckOrder, err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.remember(req.SessionID, agent.TypeCheckOrder, req.Input, output)

	writeJSON(w, http.StatusOK, AgentResponse{
		Output:         output,
		SessionID:      req.SessionID,
		ProcessingTime: time.Since(start).Seconds(),
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	start := time.Now()
	outputs, err := s.svc.Batch(r.Context(), req.Inputs, req.AgentType)
	logging.AuditBatch(req.AgentType, requestIDFrom(r.Context()), len(req.Inputs), time.Since(start), err)
	if err != nil {
		logging.ServerError("batch %s failed: %v", req.AgentType, err)
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, BatchResponse{
		Outputs:        outputs,
		ProcessingTime: time.Since(start).Seconds(),
	})
}

// featureFlags reports per-agent availability on the root card.
type featureFlags struct {
	Classifier  string `json:"phanloai"`
	CreateOrder string `json:"create_order"`
	Consulting  string `json:"consulting"`
	CheckOrder  string `json:"check_order"`
}

type serviceCard struct {
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Status    string            `json:"status"`
	Features  featureFlags      `json:"features"`
	Endpoints map[string]string `json:"endpoints"`
}

// handleRoot serves the service card. It is also the mux catchall, so
// unknown paths get the JSON 404 here.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		writeDetail(w, http.StatusNotFound, "Not Found")
		return
	}
	if r.Method != http.MethodGet {
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		return
	}

	enabled := func(ok bool) string {
		if ok {
			return "✅ Enabled"
		}
		return "❌ Disabled"
	}

	writeJSON(w, http.StatusOK, serviceCard{
		Service: "Multi-Agent LLM API",
		Version: serviceVersion,
		Status:  "running",
		Features: featureFlags{
			Classifier:  enabled(true),
			CreateOrder: enabled(true),
			Consulting:  enabled(s.svc.HasDocuments()),
			CheckOrder:  enabled(s.svc.HasOrders()),
		},
		Endpoints: map[string]string{
			"POST /agent/phanloai":     "Phân loại ý định (Create_O/Check_O/Unknown)",
			"POST /agent/create_order": "Tạo đơn hàng (thu thập thông tin từng bước)",
			"POST /agent/consulting":   "Tư vấn sản phẩm (dựa trên tài liệu)",
			"POST /agent/check_order":  "Tra cứu đơn hàng (Google Sheets)",
			"POST /agent/batch":        "Xử lý hàng loạt (tối đa 50 inputs)",
			"GET /memory/{session_id}": "Lấy lịch sử hội thoại",
			"GET /health":              "Health check",
		},
	})
}

type agentHistory struct {
	MessageCount int            `json:"message_count"`
	Messages     []memory.Entry `json:"messages"`
}

type memoryView struct {
	SessionID string                  `json:"session_id"`
	Agents    map[string]agentHistory `json:"agents"`
}

// handleMemory dispatches the two methods of /memory/{session_id}.
func (s *Server) handleMemory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleMemoryGet(w, r)
	case http.MethodDelete:
		s.handleMemoryDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, DELETE")
		writeDetail(w, http.StatusMethodNotAllowed, "Method Not Allowed")
	}
}

func (s *Server) handleMemoryGet(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	// Info before History: History would create the session as a side
	// effect and turn every probe into a 200.
	if !s.mem.Info(sessionID).Exists {
		writeDetail(w, http.StatusNotFound, detailSessionNotFound)
		return
	}

	agents := make(map[string]agentHistory, len(agentNames))
	for _, name := range agentNames {
		entries := s.mem.History(sessionID, name)
		agents[name] = agentHistory{MessageCount: len(entries), Messages: entries}
	}
	writeJSON(w, http.StatusOK, memoryView{SessionID: sessionID, Agents: agents})
}

func (s *Server) handleMemoryDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if !s.mem.Clear(sessionID) {
		writeDetail(w, http.StatusNotFound, detailSessionNotFound)
		return
	}
	if docs := s.svc.Documents(); docs != nil {
		docs.ForgetSession(sessionID)
	}
	logging.AuditSessionCleared(sessionID, requestIDFrom(r.Context()))
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Đã xóa memory cho session " + sessionID,
	})
}

type healthResources struct {
	Documents      int `json:"documents"`
	Products       int `json:"products"`
	ActiveSessions int `json:"active_sessions"`
}

type healthConfig struct {
	GPUMemory   float64 `json:"gpu_memory"`
	MaxModelLen int     `json:"max_model_len"`
	MaxNumSeqs  int     `json:"max_num_seqs"`
}

type healthView struct {
	Status    string          `json:"status"`
	Timestamp string          `json:"timestamp"`
	Model     string          `json:"model"`
	Agents    featureFlags    `json:"agents"`
	Resources healthResources `json:"resources"`
	Config    healthConfig    `json:"config"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	mark := func(ok bool) string {
		if ok {
			return "✅"
		}
		return "❌"
	}

	var docCount, productCount int
	if docs := s.svc.Documents(); docs != nil {
		docCount = docs.Store().DocumentCount()
		productCount = docs.Store().ProductCount()
	}

	writeJSON(w, http.StatusOK, healthView{
		Status:    "healthy",
		Timestamp: time.Now().Format(time.RFC3339),
		Model:     s.cfg.Model.Path,
		Agents: featureFlags{
			Classifier:  mark(true),
			CreateOrder: mark(true),
			Consulting:  mark(s.svc.HasDocuments()),
			CheckOrder:  mark(s.svc.HasOrders()),
		},
		Resources: healthResources{
			Documents:      docCount,
			Products:       productCount,
			ActiveSessions: s.mem.ActiveSessions(),
		},
		Config: healthConfig{
			GPUMemory:   s.cfg.Model.GPUMemoryUtilization,
			MaxModelLen: s.cfg.Model.MaxModelLen,
			MaxNumSeqs:  s.cfg.Model.MaxNumSeqs,
		},
	})
}
