package locale

import (
	"fmt"
	"time"
)

type russian struct{}

func Russian() Messages { return russian{} }

func (russian) Tag() string { return "ru" }

func (russian) Progress(done, total int) string { return fmt.Sprintf("%d/%d", done, total) }

func (russian) Testing(setting float64) string {
	return fmt.Sprintf("измерение %.4f мс", setting)
}

func (russian) Measured(setting, mean float64) string {
	return fmt.Sprintf("%.4f мс: μ=%.4f мс", setting, mean)
}

func (r russian) InitialEstimate(d time.Duration) string {
	return "начальная оценка " + r.duration(d) + " (низкая точность)"
}

func (r russian) LiveEstimate(d time.Duration, known bool) string {
	if !known {
		return "осталось: неизвестно"
	}
	return "осталось " + r.duration(d)
}

func (russian) Best(setting, score, mean, p95, mad float64) string {
	return fmt.Sprintf("Текущий лучший: %.4f мс (оценка=%.4f, μ=%.4f, p95=%.4f, MAD=%.4f)", setting, score, mean, p95, mad)
}

func (russian) NoBest() string { return "Текущий лучший: ещё ничего не измерено" }

func (russian) Skipped(setting float64, attempts int, reason string) string {
	return fmt.Sprintf("пропущено %.4f мс после %d попыток, не измерено: %s", setting, attempts, reason)
}

func (russian) SummaryTitle() string { return "Итоги поиска" }

func (russian) SummaryCounts(measured, skipped, total int) string {
	return fmt.Sprintf("измерено %d из %d точек, пропущено %d", measured, total, skipped)
}

func (russian) SummaryBest(setting, score float64) string {
	return fmt.Sprintf("РЕКОМЕНДУЕМОЕ ЗНАЧЕНИЕ: %.4f мс (оценка=%.4f)", setting, score)
}

func (russian) SummaryNoBest() string { return "ни одну точку измерить не удалось" }

func (r russian) SummaryTiming(elapsed, initial, live time.Duration, liveKnown bool) string {
	last := "неизвестна"
	if liveKnown {
		last = r.duration(live)
	}
	return fmt.Sprintf("заняло %s (начальная оценка %s, последняя оценка %s)",
		r.duration(elapsed), r.duration(initial), last)
}

func (russian) SummaryDistribution(samples, dropped int64, mean, p50, p99, maxMs float64) string {
	s := fmt.Sprintf("все %d выборок: μ=%.4f мс, p50=%.4f мс, p99=%.4f мс, макс=%.4f мс", samples, mean, p50, p99, maxMs)
	if dropped > 0 {
		s += fmt.Sprintf(" (вне диапазона: %d)", dropped)
	}
	return s
}

func (russian) SummarySkippedHeader(n int) string {
	return fmt.Sprintf("не измерено точек: %d", n)
}

func (russian) SummaryCancelled() string { return "поиск прерван, результаты неполные" }

func (russian) ApplyHint(setting float64) string {
	return fmt.Sprintf("SetTimerResolution.exe --resolution %d --no-console", resolution(setting))
}

func (russian) duration(d time.Duration) string {
	h, m, s := durationParts(d)
	switch {
	case h > 0:
		return fmt.Sprintf("%d ч %02d мин %02d с", h, m, s)
	case m > 0:
		return fmt.Sprintf("%d мин %02d с", m, s)
	}
	return fmt.Sprintf("%d с", s)
}
