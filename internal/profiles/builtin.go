package profiles

import "carrier-reports/internal/normalize"

// Builtin returns fresh copies of the shipped profiles. Portal scripts and
// destinations are deployment specific and come from the profiles file.
func Builtin() []*Profile {
	return []*Profile{courier(), parcel(), fulfillment()}
}

func courier() *Profile {
	return &Profile{
		Name:        "courier",
		Description: "Courier tracking portal shipment export",
		Schema: []string{
			"Airway Bill",
			"Reference No",
			"Consignee",
			"Destination",
			"Pickup Date",
			"Status",
			"Cash/Cod Amt",
		},
		Aliases: map[string][]string{
			"Airway Bill":  {"awb", "awb no", "awb number", "airwaybill", "waybill"},
			"Reference No": {"ref", "ref no", "reference", "customer ref", "order no"},
			"Consignee":    {"consignee name", "receiver", "receiver name"},
			"Destination":  {"dest", "destination city", "to city"},
			"Pickup Date":  {"pickup", "pick up date", "booking date", "shipment date"},
			"Status":       {"current status", "shipment status", "last status"},
			"Cash/Cod Amt": {"cod", "cod amount", "cod amt", "cash on delivery"},
		},
		Rules: normalize.Rules{Columns: map[string]normalize.Kind{
			"Airway Bill":  normalize.KindText,
			"Reference No": normalize.KindText,
			"Pickup Date":  normalize.KindDate,
			"Cash/Cod Amt": normalize.KindCurrency,
		}},
		Destination:  Destination{Range: "Courier!A1"},
		LookbackDays: 7,
	}
}

func parcel() *Profile {
	return &Profile{
		Name:        "parcel",
		Description: "Parcel carrier e-commerce dashboard export",
		Schema: []string{
			"Tracking Number",
			"Order ID",
			"Recipient",
			"Status",
			"Last Update",
		},
		Aliases: map[string][]string{
			"Tracking Number": {"tracking no", "tracking", "tracking id", "shipment id"},
			"Order ID":        {"order", "order number", "order no", "merchant order"},
			"Recipient":       {"recipient name", "customer", "buyer"},
			"Status":          {"delivery status", "parcel status", "state"},
			"Last Update":     {"updated at", "last updated", "status date", "event time"},
		},
		Rules: normalize.Rules{Columns: map[string]normalize.Kind{
			"Tracking Number": normalize.KindText,
			"Order ID":        normalize.KindText,
			"Last Update":     normalize.KindDate,
		}},
		Destination:  Destination{Range: "Parcel!A1"},
		LookbackDays: 3,
	}
}

func fulfillment() *Profile {
	return &Profile{
		Name:        "fulfillment",
		Description: "Domestic fulfillment portal order export",
		Schema: []string{
			"Mã vận đơn",
			"Mã đơn hàng",
			"Ngày tạo",
			"Người nhận",
			"Số điện thoại",
			"Địa chỉ",
			"Tỉnh/Thành phố",
			"Quận/Huyện",
			"Phường/Xã",
			"Trạng thái",
			"Tiền thu hộ",
			"Phí vận chuyển",
			"Khối lượng",
			"Ghi chú",
			"Ngày giao",
			"Nhân viên giao",
		},
		Aliases: map[string][]string{
			"Mã vận đơn":     {"mã vđ", "ma van don", "tracking code", "waybill"},
			"Mã đơn hàng":    {"mã đh", "ma don hang", "order code", "mã đơn"},
			"Ngày tạo":       {"ngay tao", "thời gian tạo", "created at", "created date"},
			"Người nhận":     {"nguoi nhan", "tên người nhận", "receiver"},
			"Số điện thoại":  {"sđt", "so dien thoai", "điện thoại", "phone"},
			"Địa chỉ":        {"dia chi", "địa chỉ nhận", "address"},
			"Tỉnh/Thành phố": {"tỉnh", "tinh thanh pho", "province", "city"},
			"Quận/Huyện":     {"quận", "quan huyen", "district"},
			"Phường/Xã":      {"phường", "phuong xa", "ward"},
			"Trạng thái":     {"trang thai", "tình trạng", "status"},
			"Tiền thu hộ":    {"cod", "tien thu ho", "thu hộ", "cod amount"},
			"Phí vận chuyển": {"phí ship", "phi van chuyen", "cước phí", "shipping fee"},
			"Khối lượng":     {"khoi luong", "trọng lượng", "weight"},
			"Ghi chú":        {"ghi chu", "note", "notes"},
			"Ngày giao":      {"ngay giao", "thời gian giao", "delivered at"},
			"Nhân viên giao": {"nv giao", "nhan vien giao", "shipper", "courier"},
		},
		Rules: normalize.Rules{
			DayFirst: true,
			Columns: map[string]normalize.Kind{
				"Mã vận đơn":     normalize.KindText,
				"Mã đơn hàng":    normalize.KindText,
				"Số điện thoại":  normalize.KindText,
				"Ngày tạo":       normalize.KindDate,
				"Ngày giao":      normalize.KindDate,
				"Tiền thu hộ":    normalize.KindCurrency,
				"Phí vận chuyển": normalize.KindCurrency,
			},
		},
		Destination:  Destination{Range: "Fulfillment!A1"},
		LookbackDays: 7,
	}
}
