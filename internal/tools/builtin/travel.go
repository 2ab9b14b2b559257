package builtin

import (
	"context"
	"strings"

	"chatkit/internal/tools"
)

// TravelAdviceArgs are the travel advice tool's arguments.
type TravelAdviceArgs struct {
	Temp    float64 `json:"temp" jsonschema_description:"当前或预计温度，单位摄氏度"`
	Weather string  `json:"weather" jsonschema_description:"天气描述，如“晴天”“小雨”“多云”等"`
}

// TravelAdvice is clothing and checklist advice for the trip.
type TravelAdvice struct {
	Summary   string   `json:"summary"`
	Clothing  []string `json:"clothing"`
	Checklist []string `json:"checklist"`
}

type weatherTips struct {
	key       string
	summary   string
	clothing  []string
	checklist []string
}

// Matched in order by substring, so "小雨转晴" picks 小雨.
var travelTips = []weatherTips{
	{"晴天", "天气晴朗，适合进行户外观光和拍照。", []string{"轻便透气的衣物", "太阳镜", "便携防晒伞"}, []string{"防晒霜", "补水饮品"}},
	{"多云", "多云天气，体感舒适，可以安排轻松行程。", []string{"薄外套", "舒适球鞋"}, []string{"随身水杯", "相机"}},
	{"小雨", "有小雨，建议选择室内行程或备好雨具。", []string{"防水外套", "防滑鞋"}, []string{"折叠雨伞", "防水包套"}},
	{"大雨", "降雨较大，尽量减少户外活动。", []string{"连帽雨衣", "防水短靴"}, []string{"一次性雨衣", "备用衣物"}},
	{"雪", "有降雪，注意保暖和路面湿滑。", []string{"加厚外套", "保暖手套", "帽子"}, []string{"防滑鞋套", "热饮保温杯"}},
}

// AdviseTravel builds advice from temperature and weather text.
func AdviseTravel(a TravelAdviceArgs) (TravelAdvice, error) {
	weather := strings.TrimSpace(a.Weather)
	if weather == "" {
		return TravelAdvice{}, errWeatherText
	}

	base := travelTips[0]
	for _, tip := range travelTips {
		if strings.Contains(weather, tip.key) {
			base = tip
			break
		}
	}

	return TravelAdvice{
		Summary:   base.summary + " " + temperatureAdvice(a.Temp),
		Clothing:  append([]string(nil), base.clothing...),
		Checklist: append([]string(nil), base.checklist...),
	}, nil
}

func temperatureAdvice(t float64) string {
	switch {
	case t <= 0:
		return "温度极低，需穿着羽绒服并注意手脚保暖。"
	case t <= 10:
		return "天气偏冷，出行时请加穿毛衣和厚外套。"
	case t <= 20:
		return "气温凉爽，建议分层穿着，方便增减衣物。"
	case t <= 28:
		return "气温舒适，可穿轻薄长袖或短袖。"
	default:
		return "天气炎热，做好防晒并注意补水。"
	}
}

// NewTravelAdvice returns the travel advice tool.
func NewTravelAdvice() tools.Tool {
	return tools.MustTyped(tools.NameTravelAdvice,
		"根据温度（摄氏度）和天气描述，生成旅行出行建议（衣着、注意事项）。",
		func(_ context.Context, a TravelAdviceArgs) (any, error) {
			return AdviseTravel(a)
		})
}
