// Package agent implements the four customer-service agents: intent
// classification, order creation, product consulting and order lookup.
// Each agent pairs a Vietnamese system prompt with request-time context
// (documents, customer profile, order data) and returns a plain string
// reply suitable for chat platforms.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"sonagent/internal/config"
	"sonagent/internal/customer"
	"sonagent/internal/docstore"
	"sonagent/internal/llm"
	"sonagent/internal/logging"
	"sonagent/internal/orders"
	"sonagent/internal/textutil"
)

// Sampling for the order agents. Lookup and creation both want focused
// answers, so they run cooler and shorter than consulting.
const (
	orderTemperature = 0.7
	orderMaxTokens   = 512
)

// documentContextBudget caps how many characters of document context are
// appended to the consulting prompt.
const documentContextBudget = 2000

// Canned replies for degraded paths. Wording is load-bearing for the n8n
// workflows downstream.
const (
	replyOrderReAsk         = "Dạ, em sẽ hỗ trợ anh/chị đặt hàng ạ. Cho em xin tên của anh/chị?"
	replyInvalidPhoneFormat = "Dạ, số điện thoại %s chưa hợp lệ ạ. Anh/chị kiểm tra lại giúp em (10 số, bắt đầu 03/05/07/08/09) nhé?"
	replyLookupError        = "Xin lỗi, em gặp lỗi khi tra cứu. Vui lòng thử lại ạ."
	replyLookupDisabled     = "Xin lỗi, tính năng tra cứu đơn hàng chưa khả dụng. Vui lòng liên hệ hotline ạ."
)

// Markers injected into system prompts when context lookup comes up empty.
const (
	docsUnavailableNote = "\n\n⚠️ Không tìm thấy tài liệu. Dùng kiến thức cơ bản.\n"
	orderNotFoundNote   = "\n\n⚠️ KHÔNG TÌM THẤY ĐƠN HÀNG."
)

// stockOutPatterns flag replies where the order-creation model invents
// inventory state it cannot know.
var stockOutPatterns = []string{"hết hàng", "không còn", "tạm hết", "out of stock"}

// Service dispatches user input to the agents. Documents, customer profiles
// and the order source are optional; agents degrade politely when their
// backing feature is absent.
type Service struct {
	handler   *llm.Handler
	gen       config.GenerationConfig
	docs      *docstore.Smart
	customers *customer.Manager
	orders    *orders.Handler

	now func() time.Time
}

// NewService builds a Service around the conversation handler. Optional
// features are attached with the Set methods before serving.
func NewService(handler *llm.Handler, gen config.GenerationConfig) *Service {
	return &Service{
		handler: handler,
		gen:     gen,
		now:     time.Now,
	}
}

// SetDocuments enables smart document context for the consulting agent.
func (s *Service) SetDocuments(docs *docstore.Smart) { s.docs = docs }

// SetCustomers enables customer-profile context for the consulting agent.
func (s *Service) SetCustomers(m *customer.Manager) { s.customers = m }

// SetOrders enables the order-lookup agent.
func (s *Service) SetOrders(h *orders.Handler) { s.orders = h }

// HasDocuments reports whether document context is wired.
func (s *Service) HasDocuments() bool { return s.docs != nil }

// HasOrders reports whether the order source is wired.
func (s *Service) HasOrders() bool { return s.orders != nil }

// Documents returns the smart document handler, nil when disabled.
func (s *Service) Documents() *docstore.Smart { return s.docs }

// Customers returns the profile manager, nil when disabled.
func (s *Service) Customers() *customer.Manager { return s.customers }

// Orders returns the order-lookup handler, nil when disabled.
func (s *Service) Orders() *orders.Handler { return s.orders }

// Classify returns the intent of the input as a one-key JSON string:
// {"json":"Create_O"}, {"json":"Check_O"} or {"json":"Unknown"}. Anything
// the model produces that does not parse into one of those collapses to
// Unknown. The returned error is non-nil only on context cancellation.
func (s *Service) Classify(ctx context.Context, userInput string, history []llm.Message) (string, error) {
	logging.Agent("[PhanLoai] input: %s", textutil.TruncateString(userInput, 50, "..."))

	raw, err := s.handler.Generate(ctx, PromptClassifier, userInput, history, s.classifierOptions())
	if err != nil {
		return "", err
	}

	result := textutil.ExtractIntentJSON(raw)
	logging.Agent("[PhanLoai] result: %s", result)
	return result, nil
}

// CreateOrder runs one turn of the order-collection conversation. While the
// model is still gathering fields the reply is its next question verbatim.
// Once the model emits the confirmed-order JSON, the order code is assigned
// and the reply becomes the fixed confirmation text the downstream
// workflows parse.
func (s *Service) CreateOrder(ctx context.Context, userInput string, history []llm.Message) (string, error) {
	logging.Agent("[CreateOrder] input: %s", textutil.TruncateString(userInput, 50, "..."))

	response, err := s.handler.Generate(ctx, PromptCreateOrder, userInput, history, orderOptions())
	if err != nil {
		return "", err
	}
	return s.finishOrderReply(response), nil
}

// finishOrderReply post-processes a raw order-agent reply: confirmed JSON
// becomes the confirmation text, stock-out hallucinations become the re-ask
// reply, anything else passes through.
func (s *Service) finishOrderReply(response string) string {
	if text, ok := s.confirmOrder(response); ok {
		return text
	}

	lower := strings.ToLower(response)
	for _, p := range stockOutPatterns {
		if strings.Contains(lower, p) {
			logging.AgentWarn("[CreateOrder] stock-out hallucination suppressed: %s", textutil.TruncateString(response, 80, "..."))
			return replyOrderReAsk
		}
	}
	return response
}

// confirmedOrder is the JSON shape the order prompt asks the model to emit
// once the customer confirms.
type confirmedOrder struct {
	Status       string      `json:"status"`
	OrderCode    string      `json:"order_code"`
	CustomerName string      `json:"customer_name"`
	Phone        string      `json:"phone"`
	Address      string      `json:"address"`
	Items        []orderItem `json:"items"`
}

type orderItem struct {
	Product  string      `json:"product"`
	Color    string      `json:"color,omitempty"`
	Quantity json.Number `json:"quantity"`
	Unit     string      `json:"unit"`
	Weight   string      `json:"weight,omitempty"`
}

// confirmOrder extracts a confirmed-order JSON object from the reply and
// renders the confirmation text. ok is false when the reply carries no
// usable confirmation and should be treated as a normal conversational turn.
func (s *Service) confirmOrder(response string) (string, bool) {
	raw, found := textutil.FirstJSONObject(response)
	if !found {
		return "", false
	}

	var order confirmedOrder
	if err := json.Unmarshal([]byte(raw), &order); err != nil {
		logging.AgentWarn("[CreateOrder] confirmation JSON did not parse: %v", err)
		return "", false
	}
	if order.Status != "confirmed" {
		return "", false
	}
	if order.CustomerName == "" || order.Phone == "" || order.Address == "" || len(order.Items) == 0 {
		logging.AgentWarn("[CreateOrder] confirmed JSON missing required fields")
		return "", false
	}

	if !textutil.ValidatePhone(order.Phone) {
		logging.AgentWarn("[CreateOrder] invalid phone %q in confirmed order", order.Phone)
		return fmt.Sprintf(replyInvalidPhoneFormat, order.Phone), true
	}
	order.Phone = textutil.NormalizePhone(order.Phone)

	if order.OrderCode == "" {
		order.OrderCode = orders.GenerateOrderCode(order.CustomerName, order.Phone, s.now())
	}

	logging.Agent("[CreateOrder] order confirmed: %s", order.OrderCode)
	return order.confirmationText(), true
}

// confirmationText renders the fixed-format confirmation block. Downstream
// workflows split on the line labels, so the layout must stay stable.
func (o confirmedOrder) confirmationText() string {
	var b strings.Builder
	b.WriteString("Cảm ơn quý khách đã đặt hàng của công ty Sơn Đức Dương\n")
	fmt.Fprintf(&b, "Mã đơn: %s\n", o.OrderCode)
	fmt.Fprintf(&b, "Tên người đặt hàng: %s\n", o.CustomerName)
	fmt.Fprintf(&b, "Số điện thoại: %s\n", o.Phone)
	fmt.Fprintf(&b, "Địa chỉ nhận hàng: %s\n", o.Address)

	parts := make([]string, 0, len(o.Items))
	for _, it := range o.Items {
		part := fmt.Sprintf("%s %s %s", it.Quantity, it.Unit, it.Product)
		if it.Color != "" {
			part += " " + it.Color
		}
		if it.Weight != "" {
			part += " " + it.Weight
		}
		parts = append(parts, part)
	}
	fmt.Fprintf(&b, "Đơn hàng: %s\n", strings.Join(parts, ", "))
	return b.String()
}

// Consult answers a product question. The system prompt is extended with
// document context from smart search and, when the caller is a known
// customer, with the customer's profile context. customerID and sessionID
// are usually the same value; either may be empty.
func (s *Service) Consult(ctx context.Context, userInput string, history []llm.Message, customerID, sessionID string) (string, error) {
	logging.Agent("[Consulting] input: %s", textutil.TruncateString(userInput, 50, "..."))

	system := s.consultingPrompt(ctx, userInput, customerID, sessionID)

	reply, err := s.handler.Generate(ctx, system, userInput, history, llm.GenerateOptions{})
	if err != nil {
		return "", err
	}
	logging.AgentDebug("[Consulting] reply length: %d chars", len(reply))
	return reply, nil
}

// consultingPrompt assembles the consulting system prompt for one input.
func (s *Service) consultingPrompt(ctx context.Context, userInput, customerID, sessionID string) string {
	system := PromptConsulting

	if s.docs != nil {
		sid := sessionID
		if sid == "" {
			sid = customerID
		}
		info := s.docs.ContextAwareInfo(ctx, userInput, sid, documentContextBudget)
		system += info
		logging.AgentDebug("[Consulting] document context: %d chars", len(info))
	} else {
		system += docsUnavailableNote
	}

	if customerID != "" && s.customers != nil {
		if cc := s.customers.Context(customerID); cc != "" {
			system = customer.AwarePrompt(system, cc)
		}
	}
	return system
}

// CheckOrder answers an order-status question. The input is matched against
// the order source (by code, phone or customer name) and the result, or a
// not-found marker, is injected into the system prompt so the model answers
// from data instead of inventing order state.
func (s *Service) CheckOrder(ctx context.Context, userInput string, history []llm.Message, spreadsheetID string) (string, error) {
	if s.orders == nil {
		return replyLookupDisabled, nil
	}

	query := textutil.SanitizeText(userInput, 0)
	kind := orders.DetectQueryKind(query)
	logging.Agent("[CheckOrder] lookup by %s: %s (sheet=%s)", kind, textutil.TruncateString(query, 50, "..."), spreadsheetID)

	system := PromptCheckOrder

	match, err := s.orders.Find(ctx, query, spreadsheetID)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.AgentError("[CheckOrder] lookup failed: %v", err)
		return replyLookupError, nil
	}
	if match != nil {
		system += "\n\n" + orders.FormatOrderInfo(match.Order)
		logging.Agent("[CheckOrder] found %s (matched on %s)", match.Order.Code, match.Field)
	} else {
		system += orderNotFoundNote
		logging.AgentWarn("[CheckOrder] no order matched: %s", textutil.TruncateString(query, 50, "..."))
	}

	reply, err := s.handler.Generate(ctx, system, userInput, history, s.lookupOptions())
	if err != nil {
		return "", err
	}
	return reply, nil
}

func (s *Service) classifierOptions() llm.GenerateOptions {
	temp := s.gen.ClassifierTemperature
	maxTokens := s.gen.ClassifierMaxTokens
	// The classifier must see every input verbatim; a bare "hi" still has
	// to come back as {"json":"Unknown"}.
	return llm.GenerateOptions{Temperature: &temp, MaxTokens: &maxTokens, DisableShortcuts: true}
}

func orderOptions() llm.GenerateOptions {
	temp := orderTemperature
	maxTokens := orderMaxTokens
	return llm.GenerateOptions{Temperature: &temp, MaxTokens: &maxTokens}
}

func (s *Service) lookupOptions() llm.GenerateOptions {
	opts := orderOptions()
	opts.DisableShortcuts = true
	return opts
}
