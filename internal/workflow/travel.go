package workflow

import (
	"context"
	"errors"
	"strings"

	"chatkit/internal/tools"
	"chatkit/internal/tools/builtin"
)

const (
	defaultDate    = "今天"
	defaultWeather = "晴天"
)

var (
	errNoDestination      = errors.New("workflow params 缺少 destination，无法调用 weatherTool")
	errTrafficDestination = errors.New("trafficTimeTool 需要 destination 参数")
	errAdviceWeather      = errors.New("travelAdviceTool 需要从依赖步骤获取天气信息")
	errPackingTransport   = errors.New("packingListTool 需要 transportation_preference 参数")
	errPackingWeather     = errors.New("packingListTool 需要从依赖步骤获取天气信息")
)

// TravelRegistry binds the travel tools to step functions that read the
// shared params and the weather produced by dependency steps.
func TravelRegistry() Registry {
	return Registry{
		tools.NameWeather:      weatherStep,
		tools.NameTrafficTime:  trafficStep,
		tools.NameTravelAdvice: travelAdviceStep,
		tools.NamePackingList:  packingStep,
	}
}

func weatherStep(_ context.Context, wc *Context, _ *Step) (any, error) {
	city := strings.TrimSpace(wc.Params.Destination)
	if city == "" {
		return nil, errNoDestination
	}
	date := strings.TrimSpace(wc.Params.Date)
	if date == "" {
		date = defaultDate
	}
	return builtin.Forecast(builtin.WeatherArgs{City: city, Date: date})
}

func trafficStep(_ context.Context, wc *Context, step *Step) (any, error) {
	dest := strings.TrimSpace(wc.Params.Destination)
	if dest == "" {
		return nil, errTrafficDestination
	}
	weather := defaultWeather
	if w, ok := weatherFromDeps(wc, step); ok {
		weather = w.weather
	}
	return builtin.EstimateTraffic(builtin.TrafficArgs{Destination: dest, Weather: weather})
}

func travelAdviceStep(_ context.Context, wc *Context, step *Step) (any, error) {
	w, ok := weatherFromDeps(wc, step)
	if !ok {
		return nil, errAdviceWeather
	}
	return builtin.AdviseTravel(builtin.TravelAdviceArgs{Temp: w.temp, Weather: w.weather})
}

func packingStep(_ context.Context, wc *Context, step *Step) (any, error) {
	pref := strings.TrimSpace(wc.Params.TransportationPreference)
	if pref == "" {
		return nil, errPackingTransport
	}
	mode, ok := builtin.ParseTransportMode(pref)
	if !ok {
		mode = builtin.ModeRail
	}
	w, ok := weatherFromDeps(wc, step)
	if !ok {
		return nil, errPackingWeather
	}
	return builtin.BuildPackingList(builtin.PackingArgs{
		TransportMode: string(mode),
		Temp:          w.temp,
		Weather:       w.weather,
	})
}

type weatherInfo struct {
	temp    float64
	weather string
}

// weatherFromDeps returns the first dependency result that carries both a
// temperature and a weather description.
func weatherFromDeps(wc *Context, step *Step) (weatherInfo, bool) {
	for _, id := range step.DependsOn {
		switch r := wc.StepResults[id].(type) {
		case builtin.WeatherReport:
			if r.Weather != "" {
				return weatherInfo{temp: float64(r.Temperature), weather: r.Weather}, true
			}
		case *builtin.WeatherReport:
			if r != nil && r.Weather != "" {
				return weatherInfo{temp: float64(r.Temperature), weather: r.Weather}, true
			}
		case map[string]any:
			t, tok := r["temperature"].(float64)
			w, wok := r["weather"].(string)
			if tok && wok && w != "" {
				return weatherInfo{temp: t, weather: w}, true
			}
		}
	}
	return weatherInfo{}, false
}
