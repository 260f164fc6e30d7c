package agent

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonagent/internal/config"
	"sonagent/internal/customer"
	"sonagent/internal/docstore"
	"sonagent/internal/llm"
	"sonagent/internal/orders"
	"sonagent/internal/textutil"
)

func testGenConfig() config.GenerationConfig {
	return config.GenerationConfig{
		DefaultTemperature:    0.7,
		DefaultMaxTokens:      1024,
		ClassifierTemperature: 0.1,
		ClassifierMaxTokens:   64,
		TopP:                  0.9,
		RepetitionPenalty:     1.1,
		MaxHistory:            30,
	}
}

func newTestService(mock *mockClient) *Service {
	gen := testGenConfig()
	return NewService(llm.NewHandler(mock, gen), gen)
}

func newTestDocs(t *testing.T) *docstore.Smart {
	t.Helper()
	dir := t.TempDir()
	content := "Sơn 2K là sơn hai thành phần gồm Base và Hardener, tỷ lệ pha 2:1. Độ bóng 90%, giá 200,000đ/kg."
	require.NoError(t, os.WriteFile(filepath.Join(dir, "thong_tin_son_2k.txt"), []byte(content), 0o644))

	store, err := docstore.NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.Load())
	return docstore.NewSmart(store, nil)
}

func TestClassify(t *testing.T) {
	t.Run("extracts intent from chatty output", func(t *testing.T) {
		mock := &mockClient{reply: `Kết quả phân loại: {"json":"Create_O"}`}
		svc := newTestService(mock)

		out, err := svc.Classify(context.Background(), "tôi muốn mua 2 lon sơn", nil)
		require.NoError(t, err)
		assert.Equal(t, `{"json":"Create_O"}`, out)

		call := mock.lastCall()
		assert.Equal(t, PromptClassifier, call.System)
		assert.InDelta(t, 0.1, call.Params.Temperature, 1e-9)
		assert.Equal(t, 64, call.Params.MaxTokens)
	})

	t.Run("unparseable output collapses to Unknown", func(t *testing.T) {
		mock := &mockClient{reply: "Tôi không chắc khách muốn gì."}
		svc := newTestService(mock)

		out, err := svc.Classify(context.Background(), "ờm", nil)
		require.NoError(t, err)
		assert.Equal(t, textutil.UnknownIntent, out)
	})

	t.Run("greeting is classified, not answered socially", func(t *testing.T) {
		mock := &mockClient{reply: `{"json":"Unknown"}`}
		svc := newTestService(mock)

		out, err := svc.Classify(context.Background(), "xin chào", nil)
		require.NoError(t, err)
		assert.Equal(t, `{"json":"Unknown"}`, out)

		// The full classifier prompt must reach the model even for social
		// input; the shortcut path would answer in prose.
		assert.Equal(t, 1, mock.callCount())
		assert.Equal(t, PromptClassifier, mock.lastCall().System)
	})

	t.Run("model failure degrades to Unknown", func(t *testing.T) {
		mock := &mockClient{err: errors.New("backend down")}
		svc := newTestService(mock)

		out, err := svc.Classify(context.Background(), "tôi muốn đặt sơn", nil)
		require.NoError(t, err)
		assert.Equal(t, textutil.UnknownIntent, out)
	})
}

func TestCreateOrderCollecting(t *testing.T) {
	mock := &mockClient{reply: "Dạ vâng, cho em xin số điện thoại để liên hệ giao hàng ạ?"}
	svc := newTestService(mock)

	out, err := svc.CreateOrder(context.Background(), "Nguyễn Văn A", []llm.Message{
		{Role: "user", Content: "tôi muốn mua sơn"},
		{Role: "assistant", Content: "Dạ, cho em xin tên của anh/chị?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Dạ vâng, cho em xin số điện thoại để liên hệ giao hàng ạ?", out)

	call := mock.lastCall()
	assert.Equal(t, PromptCreateOrder, call.System)
	assert.InDelta(t, 0.7, call.Params.Temperature, 1e-9)
	assert.Equal(t, 512, call.Params.MaxTokens)
}

func TestCreateOrderConfirmed(t *testing.T) {
	mock := &mockClient{reply: `{
		"status": "confirmed",
		"customer_name": "Nguyễn Văn A",
		"phone": "0912345678",
		"address": "123 Đường ABC, Quận 1, TP.HCM",
		"items": [
			{"product": "Sơn dầu", "color": "trắng", "quantity": 2, "unit": "lon", "weight": "3kg"},
			{"product": "Keo dán", "quantity": 1, "unit": "thùng"}
		]
	}`}
	svc := newTestService(mock)
	svc.now = func() time.Time { return time.Date(2024, 11, 29, 10, 0, 0, 0, time.UTC) }

	out, err := svc.CreateOrder(context.Background(), "đúng rồi em", nil)
	require.NoError(t, err)

	want := "Cảm ơn quý khách đã đặt hàng của công ty Sơn Đức Dương\n" +
		"Mã đơn: 20241129-N-678\n" +
		"Tên người đặt hàng: Nguyễn Văn A\n" +
		"Số điện thoại: 0912345678\n" +
		"Địa chỉ nhận hàng: 123 Đường ABC, Quận 1, TP.HCM\n" +
		"Đơn hàng: 2 lon Sơn dầu trắng 3kg, 1 thùng Keo dán\n"
	assert.Equal(t, want, out)
}

func TestCreateOrderKeepsProvidedCode(t *testing.T) {
	mock := &mockClient{reply: `{"status":"confirmed","order_code":"20241129-N-789","customer_name":"Nguyễn Văn A","phone":"0912345678","address":"123 Đường ABC","items":[{"product":"Sơn nước","quantity":1,"unit":"lon"}]}`}
	svc := newTestService(mock)

	out, err := svc.CreateOrder(context.Background(), "ok", []llm.Message{{Role: "user", Content: "chốt đơn"}})
	require.NoError(t, err)
	assert.Contains(t, out, "Mã đơn: 20241129-N-789\n")
}

func TestCreateOrderConfirmationInsideChat(t *testing.T) {
	mock := &mockClient{reply: `Dạ em chốt đơn cho anh nhé:
{"status":"confirmed","customer_name":"Trần Thị B","phone":"0987654321","address":"456 Đường XYZ, Quận 2","items":[{"product":"Sơn nước","color":"xanh","quantity":1,"unit":"lon","weight":"5kg"}]}`}
	svc := newTestService(mock)
	svc.now = func() time.Time { return time.Date(2024, 11, 28, 9, 0, 0, 0, time.UTC) }

	out, err := svc.CreateOrder(context.Background(), "đúng rồi", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Cảm ơn quý khách đã đặt hàng")
	assert.Contains(t, out, "Mã đơn: 20241128-T-321\n")
	assert.Contains(t, out, "Đơn hàng: 1 lon Sơn nước xanh 5kg\n")
}

func TestCreateOrderMissingFieldsPassesThrough(t *testing.T) {
	reply := `{"status":"confirmed","customer_name":"Nguyễn Văn A","phone":"0912345678","items":[{"product":"Sơn","quantity":1,"unit":"lon"}]}`
	mock := &mockClient{reply: reply}
	svc := newTestService(mock)

	out, err := svc.CreateOrder(context.Background(), "xác nhận", nil)
	require.NoError(t, err)
	// Without an address the confirmation is not rendered; the raw reply
	// goes back so the conversation can continue.
	assert.Equal(t, reply, out)
}

func TestCreateOrderInvalidPhoneReAsks(t *testing.T) {
	mock := &mockClient{reply: `{"status":"confirmed","customer_name":"Nguyễn Văn A","phone":"12345","address":"123 Đường ABC","items":[{"product":"Sơn","quantity":1,"unit":"lon"}]}`}
	svc := newTestService(mock)

	out, err := svc.CreateOrder(context.Background(), "đúng", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "số điện thoại 12345 chưa hợp lệ")
	assert.NotContains(t, out, "Cảm ơn quý khách")
}

func TestCreateOrderNormalizesPhone(t *testing.T) {
	mock := &mockClient{reply: `{"status":"confirmed","customer_name":"Nguyễn Văn A","phone":"+84 912 345 678","address":"123 Đường ABC","items":[{"product":"Sơn","quantity":1,"unit":"lon"}]}`}
	svc := newTestService(mock)
	svc.now = func() time.Time { return time.Date(2024, 12, 5, 0, 0, 0, 0, time.UTC) }

	out, err := svc.CreateOrder(context.Background(), "chính xác", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Số điện thoại: 0912345678\n")
	assert.Contains(t, out, "Mã đơn: 20241205-N-678\n")
}

func TestCreateOrderStockOutSuppressed(t *testing.T) {
	mock := &mockClient{reply: "Dạ xin lỗi anh, sơn dầu trắng hiện đã hết hàng ạ."}
	svc := newTestService(mock)

	out, err := svc.CreateOrder(context.Background(), "tôi muốn mua sơn dầu trắng", nil)
	require.NoError(t, err)
	assert.Equal(t, replyOrderReAsk, out)
}

func TestConsultWithDocuments(t *testing.T) {
	mock := &mockClient{reply: "Dạ, sơn 2K là sơn hai thành phần ạ."}
	svc := newTestService(mock)
	svc.SetDocuments(newTestDocs(t))

	out, err := svc.Consult(context.Background(), "sơn 2K là gì vậy?", nil, "", "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "Dạ, sơn 2K là sơn hai thành phần ạ.", out)

	call := mock.lastCall()
	assert.Contains(t, call.System, "chuyên viên tư vấn sản phẩm sơn")
	assert.Contains(t, call.System, "THÔNG TIN TỪ TÀI LIỆU")
	assert.Contains(t, call.System, "thong_tin_son_2k")
	assert.InDelta(t, 0.7, call.Params.Temperature, 1e-9)
	assert.Equal(t, 1024, call.Params.MaxTokens)
}

func TestConsultWithoutDocumentsAddsDisclaimer(t *testing.T) {
	mock := &mockClient{reply: "Dạ, em tư vấn theo kiến thức chung ạ."}
	svc := newTestService(mock)

	_, err := svc.Consult(context.Background(), "sơn nào bền nhất?", nil, "", "")
	require.NoError(t, err)

	assert.Contains(t, mock.lastCall().System, "Không tìm thấy tài liệu. Dùng kiến thức cơ bản.")
}

func TestConsultCustomerContext(t *testing.T) {
	m, err := customer.NewManager(filepath.Join(t.TempDir(), "profiles.json"))
	require.NoError(t, err)
	id, err := m.GetOrCreate("zalo", "z-123")
	require.NoError(t, err)
	require.NoError(t, m.UpdateInfo(id, customer.Info{Name: "Chị Lan", Phone: "0912345678"}))

	t.Run("known customer is woven into the prompt", func(t *testing.T) {
		mock := &mockClient{reply: "Dạ chị Lan ơi, em tư vấn ngay ạ."}
		svc := newTestService(mock)
		svc.SetCustomers(m)

		_, err := svc.Consult(context.Background(), "sơn nào hợp cho cửa sắt?", nil, id, id)
		require.NoError(t, err)

		system := mock.lastCall().System
		assert.Contains(t, system, "THÔNG TIN KHÁCH HÀNG")
		assert.Contains(t, system, "Chị Lan")
	})

	t.Run("plain session id adds nothing", func(t *testing.T) {
		mock := &mockClient{reply: "Dạ em tư vấn ạ."}
		svc := newTestService(mock)
		svc.SetCustomers(m)

		_, err := svc.Consult(context.Background(), "sơn nào hợp cho cửa sắt?", nil, "sess-42", "sess-42")
		require.NoError(t, err)

		assert.NotContains(t, mock.lastCall().System, "THÔNG TIN KHÁCH HÀNG")
	})
}

func sampleOrders() []orders.Order {
	return []orders.Order{
		{
			Code:     "20241129-N-789",
			Customer: "Nguyễn Văn A",
			Phone:    "0912345678",
			Address:  "123 Đường ABC, Quận 1, TP.HCM",
			Products: "Sơn dầu trắng 111 3kg",
			Status:   "Đang giao hàng",
			Date:     "2024-11-29 10:00:00",
		},
		{
			Code:     "20241128-T-456",
			Customer: "Trần Thị B",
			Phone:    "0987654321",
			Products: "Sơn nước xanh 5kg",
			Status:   "Đã giao hàng",
			Date:     "2024-11-28 09:00:00",
		},
	}
}

func TestCheckOrderDisabled(t *testing.T) {
	mock := &mockClient{reply: "should not be called"}
	svc := newTestService(mock)

	out, err := svc.CheckOrder(context.Background(), "đơn của tôi đâu?", nil, "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, replyLookupDisabled, out)
	assert.Equal(t, 0, mock.callCount())
}

func TestCheckOrderFound(t *testing.T) {
	mock := &mockClient{reply: "Dạ, đơn của anh đang được giao ạ."}
	svc := newTestService(mock)
	svc.SetOrders(orders.NewHandler(&fakeOrderSource{orders: sampleOrders()}))

	out, err := svc.CheckOrder(context.Background(), "Đơn 0987654321 của tôi đến đâu rồi?", nil, "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, "Dạ, đơn của anh đang được giao ạ.", out)

	call := mock.lastCall()
	assert.Contains(t, call.System, "chuyên TRA CỨU ĐƠN HÀNG")
	assert.Contains(t, call.System, "🔖 Mã đơn: 20241128-T-456")
	assert.Contains(t, call.System, "Trần Thị B")
	assert.NotContains(t, call.System, "KHÔNG TÌM THẤY ĐƠN HÀNG")
	assert.InDelta(t, 0.7, call.Params.Temperature, 1e-9)
	assert.Equal(t, 512, call.Params.MaxTokens)
}

func TestCheckOrderNotFound(t *testing.T) {
	mock := &mockClient{reply: "Dạ, em chưa tìm thấy đơn hàng ạ."}
	svc := newTestService(mock)
	svc.SetOrders(orders.NewHandler(&fakeOrderSource{orders: sampleOrders()}))

	_, err := svc.CheckOrder(context.Background(), "mã đơn XYZ-KHONG-CO", nil, "sheet-1")
	require.NoError(t, err)

	assert.Contains(t, mock.lastCall().System, "⚠️ KHÔNG TÌM THẤY ĐƠN HÀNG.")
}

func TestCheckOrderSourceError(t *testing.T) {
	mock := &mockClient{reply: "should not be called"}
	svc := newTestService(mock)
	svc.SetOrders(orders.NewHandler(&fakeOrderSource{err: errors.New("sheet unreachable")}))

	out, err := svc.CheckOrder(context.Background(), "20241129-N-789", nil, "sheet-1")
	require.NoError(t, err)
	assert.Equal(t, replyLookupError, out)
	assert.Equal(t, 0, mock.callCount())
}

func TestFeatureFlags(t *testing.T) {
	svc := newTestService(&mockClient{})
	assert.False(t, svc.HasDocuments())
	assert.False(t, svc.HasOrders())

	svc.SetDocuments(newTestDocs(t))
	svc.SetOrders(orders.NewHandler(&fakeOrderSource{}))
	assert.True(t, svc.HasDocuments())
	assert.True(t, svc.HasOrders())
}
