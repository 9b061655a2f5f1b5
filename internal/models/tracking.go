package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

type TrackingKind string

const (
	TrackingKindMileage TrackingKind = "mileage" // повторяется каждые N км
	TrackingKindExact   TrackingKind = "exact"   // срабатывает один раз на заданном пробеге
	TrackingKindTime    TrackingKind = "time"    // по календарному интервалу
)

// DefaultNotificationSchedule - пороги "осталось дней", на которых шлём уведомления
const DefaultNotificationSchedule = "7,3,1"

// ValidationError - ошибка проверки входных данных, для клиента это HTTP 400
type ValidationError string

func (e ValidationError) Error() string { return string(e) }

type Tracking struct {
	ID    uint         `json:"id" gorm:"primaryKey"`
	CarID uint         `json:"car_id" gorm:"column:car_id;not null;index"`
	Name  string       `json:"name" gorm:"column:name;not null;type:varchar(255)"`
	Kind  TrackingKind `json:"kind" gorm:"column:kind;not null;type:varchar(20)"`

	// Поля для видов mileage/exact
	IntervalKm       *int `json:"interval_km,omitempty" gorm:"column:interval_km"`
	LastResetMileage *int `json:"last_reset_mileage,omitempty" gorm:"column:last_reset_mileage"`
	TargetMileage    *int `json:"target_mileage,omitempty" gorm:"column:target_mileage"`

	// Поля для вида time
	IntervalDays  *int       `json:"interval_days,omitempty" gorm:"column:interval_days"`
	LastResetDate *time.Time `json:"last_reset_date,omitempty" gorm:"column:last_reset_date;type:date"`
	IsRepeating   bool       `json:"is_repeating" gorm:"column:is_repeating;not null;default:false"`

	// Текущее расписание уменьшается при подтверждениях; шаблон хранит полный
	// набор порогов и восстанавливается при продлении повторяющегося отслеживания
	NotificationSchedule string `json:"notification_schedule" gorm:"column:notification_schedule;type:varchar(255);default:'7,3,1'"`
	ScheduleTemplate     string `json:"-" gorm:"column:schedule_template;type:varchar(255);default:'7,3,1'"`

	CreatedAt time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Car Car `json:"-" gorm:"foreignKey:CarID"`
}

// TrackingResponse отдаёт клиенту отслеживание вместе с вычисленным остатком
type TrackingResponse struct {
	ID                   uint         `json:"id"`
	CarID                uint         `json:"car_id"`
	Name                 string       `json:"name"`
	Kind                 TrackingKind `json:"kind"`
	IntervalKm           *int         `json:"interval_km,omitempty"`
	LastResetMileage     *int         `json:"last_reset_mileage,omitempty"`
	TargetMileage        *int         `json:"target_mileage,omitempty"`
	IntervalDays         *int         `json:"interval_days,omitempty"`
	LastResetDate        *string      `json:"last_reset_date,omitempty"`
	IsRepeating          bool         `json:"is_repeating"`
	NotificationSchedule []int        `json:"notification_schedule"`
	Configured           bool         `json:"configured"`
	RemainingKm          *int         `json:"remaining_km,omitempty"`
	RemainingDays        *int         `json:"remaining_days,omitempty"`
	Due                  bool         `json:"due"`
	Progress             float64      `json:"progress"`
}

// DaysBetween считает целые календарные дни между двумя датами,
// время суток не учитывается
func DaysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// IsConfigured проверяет, заданы ли все обязательные поля для вида отслеживания.
// Ненастроенное отслеживание никогда не срабатывает и не попадает в выборки планировщика.
func (t *Tracking) IsConfigured() bool {
	switch t.Kind {
	case TrackingKindMileage:
		return t.IntervalKm != nil && t.LastResetMileage != nil
	case TrackingKindExact:
		return t.TargetMileage != nil
	case TrackingKindTime:
		return t.IntervalDays != nil && t.LastResetDate != nil
	}
	return false
}

// Remaining описывает остаток до срабатывания отслеживания
type Remaining struct {
	Kind TrackingKind
	Km   int // для видов mileage/exact
	Days int // для вида time
	Due  bool
}

// Remaining пересчитывает остаток на каждое чтение, кэшированного поля нет.
// Возвращает false, если отслеживание не настроено или пробег автомобиля неизвестен.
func (t *Tracking) Remaining(odometer *int, today time.Time) (Remaining, bool) {
	if !t.IsConfigured() {
		return Remaining{}, false
	}

	switch t.Kind {
	case TrackingKindMileage:
		if odometer == nil {
			return Remaining{}, false
		}
		km := *t.LastResetMileage + *t.IntervalKm - *odometer
		due := km <= 0
		if km < 0 {
			km = 0
		}
		return Remaining{Kind: t.Kind, Km: km, Due: due}, true
	case TrackingKindExact:
		if odometer == nil {
			return Remaining{}, false
		}
		km := *t.TargetMileage - *odometer
		due := km <= 0
		if km < 0 {
			km = 0
		}
		return Remaining{Kind: t.Kind, Km: km, Due: due}, true
	case TrackingKindTime:
		days := *t.IntervalDays - DaysBetween(*t.LastResetDate, today)
		due := days <= 0
		if days < 0 {
			days = 0
		}
		return Remaining{Kind: t.Kind, Days: days, Due: due}, true
	}
	return Remaining{}, false
}

// ProgressFraction возвращает долю пройденного интервала в диапазоне [0,1]
func (t *Tracking) ProgressFraction(odometer *int, today time.Time) float64 {
	if !t.IsConfigured() {
		return 0
	}

	var consumed, total float64
	switch t.Kind {
	case TrackingKindMileage:
		if odometer == nil {
			return 0
		}
		consumed = float64(*odometer - *t.LastResetMileage)
		total = float64(*t.IntervalKm)
	case TrackingKindExact:
		if odometer == nil {
			return 0
		}
		consumed = float64(*odometer)
		total = float64(*t.TargetMileage)
	case TrackingKindTime:
		consumed = float64(DaysBetween(*t.LastResetDate, today))
		total = float64(*t.IntervalDays)
	}

	if total <= 0 {
		return 0
	}
	p := consumed / total
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// ResetAtMileage перезапускает отсчёт для видов mileage/exact от текущего пробега
func (t *Tracking) ResetAtMileage(odometer int) error {
	switch t.Kind {
	case TrackingKindMileage:
		t.LastResetMileage = &odometer
		return nil
	case TrackingKindExact:
		// для exact сбрасывать нечего, цель задаётся напрямую
		return ValidationError("отслеживание по точному пробегу не сбрасывается")
	default:
		return ValidationError("для отслеживания по времени нужна дата, а не пробег")
	}
}

// ResetAtDate перезапускает отсчёт для вида time с указанной даты.
// Расписание уведомлений при ручном сбросе не восстанавливается.
func (t *Tracking) ResetAtDate(anchor time.Time) error {
	if t.Kind != TrackingKindTime {
		return ValidationError("дата сброса применима только к отслеживанию по времени")
	}
	d := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	t.LastResetDate = &d
	return nil
}

// Advance продлевает просроченное повторяющееся отслеживание ровно на один
// интервал от прежней опорной даты, а не от сегодняшнего дня: так ритм
// не сползает, даже если проход планировщика задержался. Полное расписание
// уведомлений восстанавливается из шаблона.
func (t *Tracking) Advance() error {
	if t.Kind != TrackingKindTime || !t.IsConfigured() {
		return ValidationError("продлевается только настроенное отслеживание по времени")
	}
	next := t.LastResetDate.AddDate(0, 0, *t.IntervalDays)
	t.LastResetDate = &next
	t.NotificationSchedule = t.ScheduleTemplate
	return nil
}

// ParseSchedule разбирает строку вида "7,3,1" в убывающий список порогов.
// Пороги - строго положительные: нулевой порог заставил бы просроченное
// отслеживание срабатывать на каждом проходе из-за прижатого к нулю остатка.
func ParseSchedule(s string) []int {
	if s == "" {
		return nil
	}
	var days []int
	seen := map[int]bool{}
	for _, part := range strings.Split(s, ",") {
		d, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil || d <= 0 || seen[d] {
			continue
		}
		seen[d] = true
		days = append(days, d)
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))
	return days
}

// FormatSchedule собирает пороги обратно в строку для хранения
func FormatSchedule(days []int) string {
	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, strconv.Itoa(d))
	}
	return strings.Join(parts, ",")
}

// HasThreshold проверяет, есть ли порог в текущем расписании
func (t *Tracking) HasThreshold(days int) bool {
	for _, d := range ParseSchedule(t.NotificationSchedule) {
		if d == days {
			return true
		}
	}
	return false
}

// AcknowledgeThreshold убирает порог из текущего расписания после
// подтверждения владельцем. Шаблон не меняется.
func (t *Tracking) AcknowledgeThreshold(days int) {
	var rest []int
	for _, d := range ParseSchedule(t.NotificationSchedule) {
		if d != days {
			rest = append(rest, d)
		}
	}
	t.NotificationSchedule = FormatSchedule(rest)
}

// ApplyPatch применяет частичное обновление: отсутствующие ключи не трогаются,
// неизвестный ключ - ошибка, ключ чужого вида молча игнорируется,
// чтобы значение не легло не в то поле.
func (t *Tracking) ApplyPatch(fields map[string]interface{}) error {
	for key, raw := range fields {
		switch key {
		case "name":
			s, ok := raw.(string)
			if !ok || s == "" {
				return ValidationError("название должно быть непустой строкой")
			}
			t.Name = s
		case "interval_km":
			if t.Kind != TrackingKindMileage {
				continue
			}
			v, err := patchInt(raw)
			if err != nil {
				return err
			}
			if v <= 0 {
				return ValidationError("интервал в километрах должен быть положительным")
			}
			t.IntervalKm = &v
		case "last_reset_mileage":
			if t.Kind != TrackingKindMileage {
				continue
			}
			v, err := patchInt(raw)
			if err != nil {
				return err
			}
			if v < 0 {
				return ValidationError("пробег сброса не может быть отрицательным")
			}
			t.LastResetMileage = &v
		case "target_mileage":
			if t.Kind != TrackingKindExact {
				continue
			}
			v, err := patchInt(raw)
			if err != nil {
				return err
			}
			if v <= 0 {
				return ValidationError("целевой пробег должен быть положительным")
			}
			t.TargetMileage = &v
		case "interval_days":
			if t.Kind != TrackingKindTime {
				continue
			}
			v, err := patchInt(raw)
			if err != nil {
				return err
			}
			if v <= 0 {
				return ValidationError("интервал в днях должен быть положительным")
			}
			t.IntervalDays = &v
		case "last_reset_date":
			if t.Kind != TrackingKindTime {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				return ValidationError("дата должна быть строкой в формате 2006-01-02")
			}
			d, err := time.ParseInLocation("2006-01-02", s, time.UTC)
			if err != nil {
				return ValidationError("дата должна быть строкой в формате 2006-01-02")
			}
			t.LastResetDate = &d
		case "is_repeating":
			b, ok := raw.(bool)
			if !ok {
				return ValidationError("is_repeating должен быть булевым")
			}
			if t.Kind != TrackingKindTime {
				continue
			}
			t.IsRepeating = b
		case "notification_schedule":
			if t.Kind != TrackingKindTime {
				continue
			}
			s, ok := raw.(string)
			if !ok {
				return ValidationError("расписание должно быть строкой вида 7,3,1")
			}
			parsed := ParseSchedule(s)
			if s != "" && len(parsed) == 0 {
				return ValidationError("расписание должно быть строкой вида 7,3,1")
			}
			normalized := FormatSchedule(parsed)
			t.NotificationSchedule = normalized
			t.ScheduleTemplate = normalized
		default:
			return ValidationError(fmt.Sprintf("неизвестное поле: %s", key))
		}
	}
	return nil
}

func patchInt(raw interface{}) (int, error) {
	switch v := raw.(type) {
	case float64:
		// числа из JSON приходят как float64
		return int(v), nil
	case int:
		return v, nil
	default:
		return 0, ValidationError("значение должно быть числом")
	}
}

// Response собирает представление с вычисленными остатком и прогрессом
func (t *Tracking) Response(odometer *int, today time.Time) TrackingResponse {
	resp := TrackingResponse{
		ID:                   t.ID,
		CarID:                t.CarID,
		Name:                 t.Name,
		Kind:                 t.Kind,
		IntervalKm:           t.IntervalKm,
		LastResetMileage:     t.LastResetMileage,
		TargetMileage:        t.TargetMileage,
		IntervalDays:         t.IntervalDays,
		IsRepeating:          t.IsRepeating,
		NotificationSchedule: ParseSchedule(t.NotificationSchedule),
		Configured:           t.IsConfigured(),
		Progress:             t.ProgressFraction(odometer, today),
	}
	if t.LastResetDate != nil {
		s := t.LastResetDate.Format("2006-01-02")
		resp.LastResetDate = &s
	}
	if rem, ok := t.Remaining(odometer, today); ok {
		resp.Due = rem.Due
		switch rem.Kind {
		case TrackingKindTime:
			days := rem.Days
			resp.RemainingDays = &days
		default:
			km := rem.Km
			resp.RemainingKm = &km
		}
	}
	return resp
}
