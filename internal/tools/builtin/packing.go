package builtin

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"chatkit/internal/tools"
)

// PackingArgs are the packing list tool's arguments.
type PackingArgs struct {
	TransportMode string  `json:"transportMode" jsonschema:"enum=自驾,enum=高铁,enum=飞机,enum=火车" jsonschema_description:"出行交通方式"`
	Temp          float64 `json:"temp" jsonschema_description:"目的地温度，单位摄氏度"`
	Weather       string  `json:"weather" jsonschema_description:"目的地天气描述，如'晴天'、'小雨'、'多云'、'雪'等"`
}

// PackingCategories groups the packing list.
type PackingCategories struct {
	Essentials        []string `json:"essentials"`
	Clothing          []string `json:"clothing"`
	Electronics       []string `json:"electronics"`
	PersonalCare      []string `json:"personalCare"`
	WeatherItems      []string `json:"weatherItems"`
	TransportSpecific []string `json:"transportSpecific"`
}

// PackingList is the generated list.
type PackingList struct {
	TransportMode TransportMode     `json:"transportMode"`
	Temp          float64           `json:"temp"`
	Weather       string            `json:"weather"`
	Categories    PackingCategories `json:"categories"`
	FullList      []string          `json:"fullList"`
	Summary       string            `json:"summary"`
}

var errTransportMode = errors.New(`transportMode 参数必须是 "自驾"、"高铁"、"飞机" 或 "火车"`)

// BuildPackingList assembles the categorized list and a de-duplicated full list.
func BuildPackingList(a PackingArgs) (PackingList, error) {
	mode, ok := ParseTransportMode(a.TransportMode)
	if !ok {
		return PackingList{}, errTransportMode
	}
	weather := strings.TrimSpace(a.Weather)
	if weather == "" {
		return PackingList{}, errWeatherText
	}

	cats := PackingCategories{
		Essentials:        essentialsFor(mode),
		Clothing:          clothingFor(a.Temp),
		Electronics:       electronicsFor(mode),
		PersonalCare:      personalCareFor(mode),
		WeatherItems:      weatherItemsFor(weather, a.Temp),
		TransportSpecific: transportItemsFor(mode),
	}

	full := dedupe(slices.Concat(cats.Essentials, cats.Clothing, cats.Electronics,
		cats.PersonalCare, cats.WeatherItems, cats.TransportSpecific))

	return PackingList{
		TransportMode: mode,
		Temp:          a.Temp,
		Weather:       weather,
		Categories:    cats,
		FullList:      full,
		Summary:       packingSummary(mode, a.Temp, weather, len(full)),
	}, nil
}

func essentialsFor(mode TransportMode) []string {
	base := []string{"身份证", "手机", "充电器", "钱包", "钥匙"}
	switch mode {
	case ModeFlight:
		return append(base, "护照（如需要）", "登机牌/电子登机牌", "行李标签", "旅行保险单（如购买）")
	case ModeRail, ModeTrain:
		return append(base, "车票/电子车票", "学生证/优惠证件（如适用）")
	case ModeDriving:
		return append(base, "驾驶证", "行驶证", "车辆保险单", "车辆年检标志")
	}
	return base
}

func transportItemsFor(mode TransportMode) []string {
	switch mode {
	case ModeFlight:
		return []string{"U型枕", "眼罩", "耳塞", "一次性拖鞋", "湿纸巾", "小包装零食"}
	case ModeRail, ModeTrain:
		return []string{"U型枕", "充电宝", "小零食", "水杯", "湿纸巾", "一次性拖鞋（长途）"}
	case ModeDriving:
		return []string{"车载充电器", "导航设备/手机支架", "行车记录仪（如未安装）", "应急工具包",
			"备用轮胎检查", "车载灭火器", "反光背心", "三角警示牌"}
	}
	return nil
}

func clothingFor(t float64) []string {
	switch {
	case t <= 0:
		return []string{"羽绒服", "保暖内衣", "厚毛衣", "保暖裤", "厚袜子", "保暖手套", "帽子", "围巾", "雪地靴"}
	case t <= 10:
		return []string{"厚外套", "毛衣", "长裤", "厚袜子", "手套", "帽子", "围巾", "保暖鞋"}
	case t <= 20:
		return []string{"薄外套", "长袖T恤", "长裤", "薄袜子", "运动鞋", "薄围巾（可选）"}
	case t <= 28:
		return []string{"短袖T恤", "薄长袖（备用）", "长裤/短裤", "薄外套（早晚）", "运动鞋", "凉鞋（可选）"}
	default:
		return []string{"短袖T恤", "短裤", "凉鞋/拖鞋", "太阳帽", "太阳镜", "防晒衣", "薄外套（空调房）"}
	}
}

func weatherItemsFor(weather string, t float64) []string {
	var items []string
	if strings.Contains(weather, "雨") {
		items = append(items, "雨伞", "雨衣", "防水鞋套", "防水包")
		if strings.Contains(weather, "大雨") || strings.Contains(weather, "暴雨") {
			items = append(items, "备用衣物", "防水外套")
		}
	}
	if strings.Contains(weather, "雪") {
		items = append(items, "防滑鞋套", "保暖手套", "帽子", "围巾")
	}
	if strings.Contains(weather, "晴") && t > 20 {
		items = append(items, "太阳镜", "防晒霜", "遮阳帽", "防晒衣")
	}
	if strings.Contains(weather, "雾") {
		items = append(items, "口罩", "湿纸巾")
	}
	if strings.Contains(weather, "风") {
		items = append(items, "防风外套", "帽子")
	}
	if t > 25 {
		items = append(items, "小风扇", "湿纸巾", "补水喷雾")
	}
	if t < 10 {
		items = append(items, "暖宝宝", "保温杯", "热饮")
	}
	return dedupe(items)
}

func electronicsFor(mode TransportMode) []string {
	base := []string{"手机", "充电器", "充电宝", "耳机"}
	switch mode {
	case ModeDriving:
		return append(base, "车载充电器", "行车记录仪", "导航设备", "蓝牙耳机（开车用）")
	case ModeFlight:
		return append(base, "平板电脑/电子书（可选）", "降噪耳机", "转换插头（国际航班）")
	}
	return append(base, "平板电脑/电子书（可选）")
}

func personalCareFor(mode TransportMode) []string {
	base := []string{"牙刷", "牙膏", "毛巾", "纸巾", "湿纸巾"}
	if mode == ModeFlight {
		return append(base, "洗面奶", "护肤品", "剃须刀（如需要）", "梳子", "润唇膏", "护手霜")
	}
	return base
}

var transportTips = map[TransportMode]string{
	ModeFlight:  "注意液体物品限制，建议提前了解航空公司的行李规定",
	ModeRail:    "行李相对宽松，但注意不要携带违禁品",
	ModeTrain:   "行李限制较少，但注意贵重物品安全",
	ModeDriving: "可以携带更多物品，但注意车辆载重和空间",
}

func packingSummary(mode TransportMode, t float64, weather string, count int) string {
	var tempTip string
	switch {
	case t <= 0:
		tempTip = "天气寒冷，重点准备保暖物品"
	case t <= 10:
		tempTip = "天气较冷，注意保暖"
	case t <= 20:
		tempTip = "天气凉爽，准备薄外套"
	case t <= 28:
		tempTip = "天气舒适，轻便出行"
	default:
		tempTip = "天气炎热，注意防晒和补水"
	}
	return fmt.Sprintf("根据%s出行、%s°C、%s的天气情况，共整理了 %d 件物品。%s。%s。",
		mode, strconv.FormatFloat(t, 'f', -1, 64), weather, count, tempTip, transportTips[mode])
}

func dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, it := range items {
		if _, ok := seen[it]; ok {
			continue
		}
		seen[it] = struct{}{}
		out = append(out, it)
	}
	return out
}

// NewPackingList returns the packing list tool.
func NewPackingList() tools.Tool {
	return tools.MustTyped(tools.NamePackingList,
		"根据交通方式，目的地温度和天气描述，生成详细的携带物品清单。清单包括必需品、衣物、电子设备、个人护理、天气相关物品和交通方式特定物品等分类。",
		func(_ context.Context, a PackingArgs) (any, error) {
			return BuildPackingList(a)
		})
}
