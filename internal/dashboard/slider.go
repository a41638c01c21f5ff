package dashboard

import (
	"math"
	"strconv"
)

// MaxRunningMean is the longest running-mean window in days.
const MaxRunningMean = 90

// runningMeanMarks are the labelled stops of the running-mean slider, in days.
var runningMeanMarks = []int{1, 7, 14, 30, 60, 90}

// SliderMark is a labelled position on the running-mean slider.
type SliderMark struct {
	Position int    `json:"position"`
	Label    string `json:"label"`
}

// Slider describes the running-mean slider. Positions are log-scaled days.
type Slider struct {
	Min   int          `json:"min"`
	Max   int          `json:"max"`
	Value int          `json:"value"`
	Marks []SliderMark `json:"marks"`
}

// SliderPosition maps a window length in days onto the log-scaled slider.
func SliderPosition(days int) int {
	days = max(1, min(MaxRunningMean, days))
	return int(math.Round(100 * math.Log(float64(days)) / math.Log(5)))
}

// SliderDays is the inverse of SliderPosition, clamped to [1, MaxRunningMean].
func SliderDays(pos int) int {
	days := int(math.Round(math.Pow(5, float64(pos)/100)))
	return max(1, min(MaxRunningMean, days))
}

func runningMeanSlider(days int) Slider {
	s := Slider{Min: 0, Max: SliderPosition(MaxRunningMean), Value: SliderPosition(days)}
	for _, d := range runningMeanMarks {
		s.Marks = append(s.Marks, SliderMark{Position: SliderPosition(d), Label: markLabel(d)})
	}
	return s
}

func markLabel(days int) string {
	switch {
	case days == 1:
		return "1 day"
	case days < 30:
		return strconv.Itoa(days) + " days"
	default:
		return strconv.Itoa(days/30) + "m"
	}
}
