// Package i18n renders error codes and recommendations in the operator's
// language. Persian is the default; English is the fallback for anything else.
package i18n

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

var cat = catalog.NewBuilder(catalog.Fallback(language.Persian))

type entry struct {
	key string
	fa  string
	en  string
}

var entries = []entry{
	// fields
	{"field.unit", "نوع واحد", "unit"},
	{"field.equipment", "تجهیز", "equipment"},
	{"field.date", "تاریخ اندازه‌گیری", "measurement date"},
	{"field.notes", "یادداشت", "notes"},
	{"field.id", "شناسه کاربر", "user id"},
	{"field.parameters", "پارامترها", "parameters"},
	{"field.analysisThreshold", "آستانه", "threshold"},
	{"field.analysisTimeRange", "بازه زمانی", "time range"},
	{"field.analysisComparisonDays", "دوره مقایسه", "comparison period"},

	// validation codes; %[1]s is the field label, %[2]v the limit
	{"validation.required", "%[1]s الزامی است", "%[1]s is required"},
	{"validation.invalid", "%[1]s نامعتبر است", "%[1]s is invalid"},
	{"validation.not_in_unit", "%[1]s در این واحد وجود ندارد", "%[1]s does not belong to this unit"},
	{"validation.future_date", "%[1]s نمی‌تواند در آینده باشد", "%[1]s cannot be in the future"},
	{"validation.too_old", "%[1]s نمی‌تواند بیشتر از یک سال پیش باشد", "%[1]s cannot be more than a year ago"},
	{"validation.too_long", "%[1]s نباید بیشتر از %[2]v کاراکتر باشد", "%[1]s must not exceed %[2]v characters"},
	{"validation.negative", "%[1]s نمی‌تواند منفی باشد", "%[1]s cannot be negative"},
	{"validation.decimal_places", "%[1]s: حداکثر %[2]v رقم اعشار مجاز است", "%[1]s: at most %[2]v decimal places are allowed"},
	{"validation.max_value", "%[1]s: حداکثر مقدار %[2]v است", "%[1]s: maximum value is %[2]v"},
	{"validation.out_of_range", "%[1]s خارج از محدوده مجاز است", "%[1]s is out of range"},
	{"validation.failed", "خطاهای اعتبارسنجی: %s", "validation errors: %s"},

	// remote error kinds
	{"remote.not_found", "رکوردی یافت نشد", "record not found"},
	{"remote.conflict", "این رکورد قبلاً وجود دارد", "the record already exists"},
	{"remote.auth_required", "خطا در احراز هویت - لطفاً دوباره وارد شوید", "authentication required, please sign in again"},
	{"remote.network_unreachable", "خطا در اتصال به شبکه", "network unreachable"},
	{"remote.unknown", "خطا در ارتباط با سرور", "remote store error"},

	// other errors
	{"error.sync_in_progress", "همگام‌سازی در حال انجام است", "a sync is already in progress"},
	{"error.storage", "خطا در ذخیره محلی داده‌ها", "local storage failed"},
	{"error.not_found", "داده یافت نشد", "record not found"},
	{"error.unknown", "خطای ناشناخته", "unexpected error"},
	{"error.bad_request", "درخواست نامعتبر است", "malformed request"},
	{"error.cloud_disabled", "سرویس‌های ابری فعال نیستند", "cloud services are not enabled"},
	{"error.realtime_disabled", "به‌روزرسانی زنده فعال نیست", "realtime updates are not enabled"},

	// alert recommendations
	{"recommend.shutdown_and_inspect", "توقف فوری تجهیز و بررسی دقیق توسط تکنسین", "stop the equipment immediately and have a technician inspect it"},
	{"recommend.schedule_urgent_repair", "برنامه‌ریزی تعمیرات اضطراری در اولین فرصت", "schedule urgent repairs at the first opportunity"},
	{"recommend.increase_monitoring", "افزایش نظارت و بررسی در روزهای آینده", "increase monitoring over the coming days"},

	// report-wide recommendations; %[1]d is the count
	{"global.critical.title", "هشدار بحرانی", "critical alert"},
	{"global.critical.description", "%[1]d تجهیز در وضعیت بحرانی قرار دارند", "%[1]d equipment items are in a critical state"},
	{"global.critical.action", "توقف فوری تجهیزات و بررسی کامل", "stop the equipment immediately for a full inspection"},
	{"global.trend.title", "روند افزایشی", "increasing trend"},
	{"global.trend.description", "%[1]d تجهیز روند افزایشی قابل اعتماد دارند", "%[1]d equipment items show a reliable increasing trend"},
	{"global.trend.action", "برنامه‌ریزی تعمیرات پیشگیرانه", "plan preventive maintenance"},

	// sync outcomes
	{"sync.none", "هیچ داده‌ای برای همگام‌سازی وجود ندارد", "nothing to sync"},
	{"sync.done", "%[1]d رکورد همگام‌سازی شد", "%[1]d records synced"},
	{"record.deleted", "داده حذف شد", "record deleted"},
	{"local.cleared", "داده‌های محلی پاک شد", "local data cleared"},
}

func init() {
	for _, e := range entries {
		// the builder only rejects malformed tags, and both are fixed
		_ = cat.SetString(language.Persian, e.key, e.fa)
		_ = cat.SetString(language.English, e.key, e.en)
	}
}

var matcher = language.NewMatcher([]language.Tag{language.Persian, language.English})

// Tag resolves a locale string such as "fa", "en-US" or an Accept-Language
// header to a supported language.
func Tag(locale string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(locale)
	if err != nil || len(tags) == 0 {
		return language.Persian
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.Persian
	}
	return []language.Tag{language.Persian, language.English}[idx]
}

func printer(tag language.Tag) *message.Printer {
	return message.NewPrinter(tag, message.Catalog(cat))
}
