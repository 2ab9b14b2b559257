package builtin

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf16"

	"chatkit/internal/tools"
)

// TransportMode is a way of travelling to the destination.
type TransportMode string

const (
	ModeDriving TransportMode = "自驾"
	ModeRail    TransportMode = "高铁"
	ModeFlight  TransportMode = "飞机"
	ModeTrain   TransportMode = "火车"
)

// ParseTransportMode accepts exactly the four known modes.
func ParseTransportMode(s string) (TransportMode, bool) {
	switch m := TransportMode(strings.TrimSpace(s)); m {
	case ModeDriving, ModeRail, ModeFlight, ModeTrain:
		return m, true
	}
	return "", false
}

// TrafficArgs are the traffic tool's arguments.
type TrafficArgs struct {
	Destination string `json:"destination" jsonschema_description:"目的地城市名称，例如：'上海'、'广州'、'深圳'、'杭州'等"`
	Weather     string `json:"weather" jsonschema_description:"目的地天气描述，如 '晴天'、'小雨'、'暴雪'、'台风' 等"`
}

// TrafficEstimate is the travel time estimate from Beijing.
type TrafficEstimate struct {
	Destination        string        `json:"destination"`
	Weather            string        `json:"weather"`
	Distance           int           `json:"distance"`
	TransportMode      TransportMode `json:"transportMode"`
	EstimatedTime      int           `json:"estimatedTime"`
	TimeDisplay        string        `json:"timeDisplay"`
	TrafficCondition   string        `json:"trafficCondition"`
	SuggestedDeparture string        `json:"suggestedDeparture,omitempty"`
	Notes              string        `json:"notes,omitempty"`
	TravelAdvice       string        `json:"travelAdvice,omitempty"`
}

type route struct {
	distance int
	mode     TransportMode
}

// 以北京为起点
var cityRoutes = map[string]route{
	"北京":  {0, ModeDriving},
	"上海":  {1213, ModeRail},
	"广州":  {2129, ModeFlight},
	"深圳":  {2200, ModeFlight},
	"杭州":  {1260, ModeRail},
	"成都":  {1873, ModeFlight},
	"重庆":  {1786, ModeRail},
	"西安":  {1080, ModeRail},
	"南京":  {1023, ModeRail},
	"武汉":  {1152, ModeRail},
	"天津":  {120, ModeDriving},
	"苏州":  {1100, ModeRail},
	"长沙":  {1445, ModeRail},
	"郑州":  {695, ModeRail},
	"济南":  {410, ModeRail},
	"青岛":  {670, ModeRail},
	"大连":  {840, ModeFlight},
	"厦门":  {1880, ModeFlight},
	"昆明":  {2600, ModeFlight},
	"哈尔滨": {1240, ModeFlight},
}

var (
	modeSpeed = map[TransportMode]float64{
		ModeDriving: 80,
		ModeRail:    300,
		ModeFlight:  800,
		ModeTrain:   120,
	}

	errDestination = errors.New("destination 参数必须是非空字符串")
	errWeatherText = errors.New("weather 参数必须是非空字符串")
)

// EstimateTraffic estimates distance and travel time to destination.
// Cities outside the table get a stable distance derived from the name.
func EstimateTraffic(a TrafficArgs) (TrafficEstimate, error) {
	dest := strings.TrimSpace(a.Destination)
	if dest == "" {
		return TrafficEstimate{}, errDestination
	}
	weather := strings.TrimSpace(a.Weather)
	if weather == "" {
		return TrafficEstimate{}, errWeatherText
	}

	r, ok := cityRoutes[dest]
	if !ok {
		r = hashedRoute(dest)
	}

	minutes := travelMinutes(r.distance, r.mode)
	est := TrafficEstimate{
		Destination:        dest,
		Weather:            weather,
		Distance:           r.distance,
		TransportMode:      r.mode,
		EstimatedTime:      minutes,
		TimeDisplay:        FormatMinutes(minutes),
		TrafficCondition:   trafficCondition(r.distance, r.mode),
		SuggestedDeparture: suggestedDeparture(r.mode),
		TravelAdvice:       weatherAdvice(weather, r.mode, r.distance),
	}
	switch {
	case r.distance > 1500:
		est.Notes = "长途旅行，建议提前做好行程规划，注意休息"
	case r.mode == ModeFlight:
		est.Notes = "请提前关注航班动态，建议购买延误险"
	}
	return est, nil
}

func hashedRoute(city string) route {
	sum := 0
	for _, u := range utf16.Encode([]rune(city)) {
		sum += int(u)
	}
	d := sum%2000 + 200
	switch {
	case d < 300:
		return route{d, ModeDriving}
	case d < 1500:
		return route{d, ModeRail}
	default:
		return route{d, ModeFlight}
	}
}

func travelMinutes(distance int, mode TransportMode) int {
	speed, ok := modeSpeed[mode]
	if !ok {
		speed = 80
	}
	extra := 10.0
	switch mode {
	case ModeFlight:
		extra = 120
	case ModeRail:
		extra = 30
	}
	return int(math.Round(float64(distance)/speed*60 + extra))
}

// FormatMinutes renders a duration such as "4小时33分钟".
func FormatMinutes(minutes int) string {
	if minutes < 60 {
		return fmt.Sprintf("%d分钟", minutes)
	}
	h, m := minutes/60, minutes%60
	if m == 0 {
		return fmt.Sprintf("%d小时", h)
	}
	return fmt.Sprintf("%d小时%d分钟", h, m)
}

func trafficCondition(distance int, mode TransportMode) string {
	switch mode {
	case ModeDriving:
		switch {
		case distance < 200:
			return "路况良好，建议避开早晚高峰"
		case distance < 500:
			return "部分路段可能拥堵，建议提前规划路线"
		default:
			return "长途驾驶，注意休息，建议分段行驶"
		}
	case ModeRail:
		return "高铁班次较多，建议提前购票"
	case ModeFlight:
		return "建议提前2小时到达机场，注意航班延误情况"
	default:
		return "普通火车，建议提前购票，注意车次时间"
	}
}

func suggestedDeparture(mode TransportMode) string {
	switch mode {
	case ModeDriving:
		return "建议早上7-8点出发，避开早高峰"
	case ModeRail:
		return "建议选择上午或下午班次，避开早晚高峰"
	case ModeFlight:
		return "建议选择上午或中午航班，延误率较低"
	default:
		return "建议提前查询车次时刻表，合理安排时间"
	}
}

// weatherAdvice checks severe conditions first.
func weatherAdvice(weather string, mode TransportMode, distance int) string {
	has := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(weather, s) {
				return true
			}
		}
		return false
	}

	switch {
	case has("暴雪"):
		return "暴雪天气，请关注封路/停运信息，必要时改签或延后行程。"
	case has("暴雨", "台风"):
		return "强降雨/台风，务必预留更多机动时间，提前关注航班/车次变更。"
	case has("大雪"):
		if mode == ModeDriving {
			return "大雪路滑，自驾需备防滑链，降低车速，拉大车距。"
		}
		return "大雪天气可能导致延误，建议提前查询车次/航班状态。"
	case has("大雨"):
		if mode == ModeDriving {
			return "大雨路段视线差，注意开启雾灯和雨刮，预留更长行车时间。"
		}
		return "大雨可能造成延误，请提前到站/机场办理值机或验票。"
	case has("小雨", "阵雨"):
		return "有降雨，建议携带雨具，出门预留 20-30 分钟机动时间。"
	case has("雾"):
		if mode == ModeFlight {
			return "大雾可能影响航班，请随时关注起降动态。"
		}
		return "有雾，出发前确认能见度，注意安全。"
	case has("高温", "炎热"):
		return "高温天气，补水防暑，避免长时间暴晒。"
	case has("寒潮", "低温"):
		return "低温出行，注意保暖，提前检查交通是否受影响。"
	}
	if distance > 800 {
		return "长途出行，建议提前查阅班次并预留中转/安检时间。"
	}
	return "行程较短，正常出行即可，注意实时路况即可。"
}

// NewTrafficTime returns the traffic estimate tool.
func NewTrafficTime() tools.Tool {
	return tools.MustTyped(tools.NameTrafficTime,
		"根据目的地城市名称和天气描述，估算从当前位置（默认北京）到目的地的里程、交通时间、交通方式，并给出路况、出发时间和基于天气的出行建议（mock 数据）。",
		func(_ context.Context, a TrafficArgs) (any, error) {
			return EstimateTraffic(a)
		})
}
