package builtin

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"strings"
	"time"

	"chatkit/internal/tools"
)

// WeatherArgs are the weather tool's arguments.
type WeatherArgs struct {
	Date string `json:"date" jsonschema_description:"查询日期，格式为 'YYYY-MM-DD' 或相对描述如 '今天'、'明天'、'后天'"`
	City string `json:"city" jsonschema_description:"要查询的城市名称，例如：'北京'、'上海'、'广州'、'深圳'等"`
}

// WeatherReport is a mock forecast.
type WeatherReport struct {
	City          string `json:"city"`
	Date          string `json:"date"`
	Temperature   int    `json:"temperature"`
	Weather       string `json:"weather"`
	Icon          string `json:"icon"`
	Humidity      int    `json:"humidity"`
	WindSpeed     string `json:"windSpeed"`
	WindDirection string `json:"windDirection"`
	AirQuality    string `json:"airQuality"`
	Suggestion    string `json:"suggestion"`
	UpdateTime    string `json:"updateTime"`
}

type weatherKind struct {
	name     string
	icon     string
	min, max int
}

var weatherKinds = []weatherKind{
	{"晴天", "☀️", 10, 30},
	{"多云", "⛅", 5, 25},
	{"阴天", "☁️", 0, 20},
	{"小雨", "🌧️", 5, 18},
	{"中雨", "🌧️", 3, 15},
	{"大雨", "⛈️", 0, 12},
	{"雷阵雨", "⚡", 5, 20},
	{"雪", "❄️", -10, 5},
	{"雾", "🌫️", -5, 15},
	{"沙尘暴", "🌪️", 0, 25},
}

var (
	windDirections = []string{"北", "东北", "东", "东南", "南", "西南", "西", "西北"}
	airQualities   = []string{"优", "良", "轻度污染", "中度污染", "重度污染"}

	chinaTime = time.FixedZone("CST", 8*3600)
	now       = time.Now
)

// ErrWeatherArgs is returned when city or date is empty.
var ErrWeatherArgs = errors.New("必须提供日期和城市参数")

// Forecast generates a mock forecast. The same city and date always yield
// the same weather so a plan and its retries see consistent data.
func Forecast(a WeatherArgs) (WeatherReport, error) {
	city, date := strings.TrimSpace(a.City), strings.TrimSpace(a.Date)
	if city == "" || date == "" {
		return WeatherReport{}, ErrWeatherArgs
	}

	h := fnv.New64a()
	h.Write([]byte(city))
	h.Write([]byte{0})
	h.Write([]byte(date))
	seed := h.Sum64()
	rng := rand.New(rand.NewPCG(seed, seed>>1|1))

	kind := weatherKinds[rng.IntN(len(weatherKinds))]
	temp := rng.IntN(kind.max-kind.min+1) + kind.min

	return WeatherReport{
		City:          city,
		Date:          date,
		Temperature:   temp,
		Weather:       kind.name,
		Icon:          kind.icon,
		Humidity:      rng.IntN(50) + 30,
		WindSpeed:     fmt.Sprintf("%.1f", rng.Float64()*10),
		WindDirection: windDirections[rng.IntN(len(windDirections))],
		AirQuality:    airQualities[rng.IntN(len(airQualities))],
		Suggestion:    weatherSuggestion(kind.name, temp),
		UpdateTime:    now().In(chinaTime).Format("2006/1/2 15:04:05"),
	}, nil
}

func weatherSuggestion(kind string, temp int) string {
	var s string
	switch {
	case temp < 0:
		s = "天气非常寒冷，请穿厚羽绒服，注意防寒保暖"
	case temp < 10:
		s = "天气寒冷，建议穿厚外套，注意保暖"
	case temp < 20:
		s = "天气凉爽，建议穿外套或薄毛衣"
	default:
		s = "天气温暖，适合穿短袖或薄外套"
	}

	switch {
	case strings.Contains(kind, "雨"):
		s += "，记得带伞"
	case kind == "雪":
		s += "，注意防滑"
	case kind == "晴天":
		s += "，注意防晒"
	}
	return s
}

// NewWeather returns the weather tool.
func NewWeather() tools.Tool {
	return tools.MustTyped(tools.NameWeather,
		"获取指定城市在指定日期的详细天气信息，包括温度、天气状况、湿度、风速风向、空气质量等，并提供穿衣和生活建议。数据为模拟生成，用于演示目的。",
		func(_ context.Context, a WeatherArgs) (any, error) {
			return Forecast(a)
		})
}
