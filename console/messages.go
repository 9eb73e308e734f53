package console

import (
	"strings"

	auth "github.com/goliatone/go-console-auth"
)

var catalog = map[string]map[string]string{
	"ar": {
		auth.TextCodeInvalidCredentials:     "البريد الإلكتروني أو كلمة المرور غير صحيحة",
		auth.TextCodeAccountDisabled:        "تم تعطيل هذا الحساب",
		auth.TextCodeTooManyRequests:        "محاولات كثيرة، يرجى المحاولة لاحقاً",
		auth.TextCodeReauthenticationFailed: "كلمة المرور الحالية غير صحيحة",
		auth.TextCodeNotAuthenticated:       "يرجى تسجيل الدخول",
		auth.TextCodeForbidden:              "ليس لديك صلاحية للوصول إلى هذه الصفحة",
		auth.TextCodeConsistency:            "تعذر حفظ التغييرات بشكل متسق، يرجى التواصل مع المسؤول",
		auth.TextCodeOrphanedIdentity:       "تم إنشاء الحساب ولكن تعذر إنشاء الملف الشخصي",
		auth.TextCodeInvalidRole:            "الدور غير صالح",
		auth.TextCodeFieldNotPermitted:      "لا يمكن تعديل هذا الحقل",
		auth.TextCodeInvalidInput:           "البيانات المدخلة غير صالحة",
		auth.TextCodeEmailInUse:             "البريد الإلكتروني مستخدم بالفعل",
		auth.TextCodePasswordResetRequest:   "تعذر معالجة طلب إعادة تعيين كلمة المرور",
		auth.TextCodeInvalidToken:           "الرابط غير صالح أو منتهي الصلاحية",
		auth.TextCodeProfileResolution:      "تعذر تحميل الملف الشخصي، يرجى المحاولة مرة أخرى",
		auth.MessageKeyGeneric:              "حدث خطأ غير متوقع",
		"password_reset.sent":               "إذا كان البريد مسجلاً فستصلك رسالة لإعادة تعيين كلمة المرور",
		"password_reset.done":               "تم تغيير كلمة المرور، يمكنك تسجيل الدخول الآن",
		"verify_email.done":                 "تم تأكيد البريد الإلكتروني",
		"login.title":                       "تسجيل الدخول",
		"loading.title":                     "جاري التحميل",
		"forbidden.title":                   "غير مصرح",
		"error.title":                       "تعذر فتح الجلسة",
		"logout":                            "تسجيل الخروج",
		"section.dashboard":                 "لوحة التحكم",
		"section.customers":                 "العملاء",
		"section.products":                  "المنتجات",
		"section.sales":                     "المبيعات",
		"section.returns":                   "المرتجعات",
		"section.payments":                  "المدفوعات",
		"section.users":                     "المستخدمون",
		"section.profile":                   "الملف الشخصي",
	},
	"en": {
		auth.TextCodeInvalidCredentials:     "Invalid email or password",
		auth.TextCodeAccountDisabled:        "This account has been disabled",
		auth.TextCodeTooManyRequests:        "Too many attempts, please try again later",
		auth.TextCodeReauthenticationFailed: "Current password is incorrect",
		auth.TextCodeNotAuthenticated:       "Please sign in",
		auth.TextCodeForbidden:              "You are not allowed to access this page",
		auth.TextCodeConsistency:            "Changes could not be saved consistently, contact an administrator",
		auth.TextCodeOrphanedIdentity:       "The account was created but its profile could not be saved",
		auth.TextCodeInvalidRole:            "Invalid role",
		auth.TextCodeFieldNotPermitted:      "This field cannot be changed",
		auth.TextCodeInvalidInput:           "Invalid input",
		auth.TextCodeEmailInUse:             "Email already in use",
		auth.TextCodePasswordResetRequest:   "Unable to process the password reset request",
		auth.TextCodeInvalidToken:           "The link is invalid or has expired",
		auth.TextCodeProfileResolution:      "Your profile could not be loaded, please try again",
		auth.MessageKeyGeneric:              "An unexpected error occurred",
		"password_reset.sent":               "If the email is registered you will receive a reset link",
		"password_reset.done":               "Password changed, you can sign in now",
		"verify_email.done":                 "Email confirmed",
		"login.title":                       "Sign in",
		"loading.title":                     "Loading",
		"forbidden.title":                   "Forbidden",
		"error.title":                       "Session unavailable",
		"logout":                            "Sign out",
		"section.dashboard":                 "Dashboard",
		"section.customers":                 "Customers",
		"section.products":                  "Products",
		"section.sales":                     "Sales",
		"section.returns":                   "Returns",
		"section.payments":                  "Payments",
		"section.users":                     "Users",
		"section.profile":                   "Profile",
	},
}

// Messages resolves user facing strings for a locale, falling back to English.
type Messages struct {
	locale string
}

// NewMessages returns messages for locale (default ar).
func NewMessages(locale string) Messages {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if _, ok := catalog[locale]; !ok {
		locale = "ar"
	}
	return Messages{locale: locale}
}

// Locale returns the resolved locale.
func (m Messages) Locale() string {
	return m.locale
}

// Get returns the message for key.
func (m Messages) Get(key string) string {
	if msg, ok := catalog[m.locale][key]; ok {
		return msg
	}
	if msg, ok := catalog["en"][key]; ok {
		return msg
	}
	return key
}

// ForError returns the message matching the error text code.
func (m Messages) ForError(err error) string {
	return m.Get(auth.MessageKey(err))
}
