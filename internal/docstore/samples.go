package docstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"sonagent/internal/logging"
)

const sampleSon2K = `THÔNG TIN SƠN 2K (SƠN HAI THÀNH PHẦN)

1. ĐẶC ĐIỂM:
- Sơn 2K là sơn 2 thành phần: Base (sơn chính) + Hardener (chất đóng rắn)
- Độ cứng cao, chống xước tốt
- Độ bóng cao, màu sắc đẹp
- Thời gian khô: 2-4 giờ

2. ỨNG DỤNG:
- Sơn xe máy, ô tô
- Sơn kim loại cao cấp
- Sơn đồ gỗ nội thất

3. CÁCH PHA CHẾ:
- Tỷ lệ pha: Base : Hardener = 2:1
- Thêm dung môi nếu cần (tối đa 10%)
- Khuấy đều trước khi sơn

4. BẢO QUẢN:
- Nơi khô ráo, thoáng mát
- Tránh ánh nắng trực tiếp
- Sau khi mở nắp, sử dụng trong 6 tháng

5. GIÁ THAM KHẢO:
- Sơn 2K trắng: 200,000đ/kg
- Sơn 2K màu: 250,000đ/kg
`

const sampleSon1K = `THÔNG TIN SƠN 1K (SƠN MỘT THÀNH PHẦN)

1. ĐẶC ĐIỂM:
- Sơn 1 thành phần, sẵn sàng sử dụng
- Dễ thi công, phù hợp thợ phổ thông
- Giá thành rẻ hơn sơn 2K
- Thời gian khô: 4-6 giờ

2. ỨNG DỤNG:
- Sơn tường nhà
- Sơn đồ gỗ thông thường
- Sơn kim loại công nghiệp

3. CÁCH PHA CHẾ:
- Có thể sử dụng trực tiếp
- Pha loãng với dung môi nếu cần (tỷ lệ 1:0.2)

4. GIÁ THAM KHẢO:
- Sơn 1K trắng: 120,000đ/kg
- Sơn 1K màu: 150,000đ/kg
`

const sampleGuide = `HƯỚNG DẪN THI CÔNG SƠN

A. CHUẨN BỊ BỀ MẶT:
1. Làm sạch bề mặt
2. Chà nhám bằng giấy nhám P180-P240
3. Lau sạch bụi

B. PHA SƠN:
- Sơn 2K: Base + Hardener (2:1) + Dung môi (nếu cần)
- Sơn 1K: Pha loãng với dung môi 10-20%

C. THI CÔNG:
1. Sơn lót (nếu cần): 1 lớp
2. Chờ khô 4-6 giờ
3. Chà nhám nhẹ
4. Sơn phủ: 2-3 lớp, mỗi lớp cách 2-4 giờ

D. BẢO DƯỠNG:
- Không rửa trong 7 ngày đầu
- Tránh va đập mạnh
`

// sampleSpecRows is the technical data sheet, header row first.
var sampleSpecRows = [][]string{
	{"Loại sơn", "Độ bóng", "Thời gian khô (giờ)", "Độ bền (năm)", "Độ che phủ (m²/kg)", "Nhiệt độ thi công (°C)"},
	{"Sơn 2K", "Cao (90%)", "2-4", "7-10", "10-12", "15-35"},
	{"Sơn 1K", "Trung bình (60%)", "4-6", "3-5", "8-10", "15-35"},
	{"Sơn nước", "Thấp (30%)", "2-3", "3-5", "12-15", "10-40"},
	{"Sơn dầu", "Cao (85%)", "6-8", "5-7", "8-10", "15-35"},
}

// sampleProduct keeps the JSON key order of the product catalog.
type sampleProduct struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Type        string         `json:"type"`
	Color       string         `json:"color"`
	Weights     []string       `json:"weights"`
	Price       map[string]int `json:"price"`
	Description string         `json:"description"`
}

var sampleProducts = struct {
	Products []sampleProduct `json:"products"`
}{
	Products: []sampleProduct{
		{
			ID:          "son-2k-trang",
			Name:        "Sơn 2K Trắng",
			Type:        "Sơn 2 thành phần",
			Color:       "Trắng",
			Weights:     []string{"1kg", "5kg"},
			Price:       map[string]int{"1kg": 200000, "5kg": 950000},
			Description: "Sơn 2K cao cấp, độ bóng cao",
		},
		{
			ID:          "son-1k-do",
			Name:        "Sơn 1K Đỏ",
			Type:        "Sơn 1 thành phần",
			Color:       "Đỏ",
			Weights:     []string{"1kg", "3kg"},
			Price:       map[string]int{"1kg": 150000, "3kg": 420000},
			Description: "Sơn 1K màu đỏ tươi, dễ thi công",
		},
	},
}

// SampleFilenames lists the files CreateSampleStructure writes.
var SampleFilenames = []string{
	"thong_tin_son_2k.txt",
	"thong_tin_son_1k.txt",
	"bang_thong_so_ky_thuat.csv",
	"danh_sach_san_pham.json",
	"huong_dan_thi_cong.txt",
}

// CreateSampleStructure writes the starter documentation set into dir:
// two product sheets, a spec table, a product catalog and an application
// guide. Existing files are overwritten.
func CreateSampleStructure(dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	texts := map[string]string{
		"thong_tin_son_2k.txt":   sampleSon2K,
		"thong_tin_son_1k.txt":   sampleSon1K,
		"huong_dan_thi_cong.txt": sampleGuide,
	}
	for name, content := range texts {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}

	csvFile, err := os.Create(filepath.Join(dir, "bang_thong_so_ky_thuat.csv"))
	if err != nil {
		return fmt.Errorf("failed to create spec table: %w", err)
	}
	writer := csv.NewWriter(csvFile)
	if err := writer.WriteAll(sampleSpecRows); err != nil {
		csvFile.Close()
		return fmt.Errorf("failed to write spec table: %w", err)
	}
	if err := csvFile.Close(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(sampleProducts, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "danh_sach_san_pham.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write product catalog: %w", err)
	}

	logging.Docs("Created sample documents in %s", dir)
	for _, name := range SampleFilenames {
		logging.Docs("   - %s", name)
	}
	return nil
}
