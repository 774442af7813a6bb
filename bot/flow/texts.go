package flow

import "strings"

// Texts is the user-facing copy. Empty fields fall back to the defaults.
// CardAccepted may contain {card} and {amount} placeholders.
type Texts struct {
	Greeting           string `yaml:"greeting"`
	OnchainButton      string `yaml:"onchain_button"`
	LightningButton    string `yaml:"lightning_button"`
	AmountPrompt       string `yaml:"amount_prompt"`
	PaidButton         string `yaml:"paid_button"`
	CardPrompt         string `yaml:"card_prompt"`
	CardInvalid        string `yaml:"card_invalid"`
	CardAccepted       string `yaml:"card_accepted"`
	InvoiceFailed      string `yaml:"invoice_failed"`
	PaymentNotReceived string `yaml:"payment_not_received"`
	PaymentCheckFailed string `yaml:"payment_check_failed"`
	GenericError       string `yaml:"generic_error"`
}

// DefaultTexts returns the Persian copy the bot ships with.
func DefaultTexts() Texts {
	return Texts{
		Greeting:           "سلام با بات ما میتونی بیتکوینتو درجا به ریال تبدیل کنی بدون نیاز به احراز هویت\n برای شروع آنچین یا لایتنینگ رو انتخاب کنید",
		OnchainButton:      "آنچین",
		LightningButton:    "لایتنینگ⚡️",
		AmountPrompt:       "لطف کنید میزان ساتوشی واریزیتونو برام بفرستین:(مثال: 1000)",
		PaidButton:         "پرداخت کردم",
		CardPrompt:         "پرداخت انجام شد! حالا لطف کنید شماره کارت مد نظر را برای ما بفرستید:",
		CardInvalid:        "شماره کارت معتبر نیست. لطفا شماره کارت ۱۶ رقمی را بدون اشتباه بفرستید:",
		CardAccepted:       "شماره کارت {card} ثبت شد. معادل ریالی {amount} ساتوشی به زودی به این کارت واریز می‌شود.",
		InvoiceFailed:      "ساخت فاکتور با خطا مواجه شد. لطفا چند لحظه دیگر دوباره مبلغ را بفرستید.",
		PaymentNotReceived: "پرداخت هنوز دریافت نشده است. بعد از پرداخت دوباره دکمه را بزنید.",
		PaymentCheckFailed: "بررسی پرداخت با خطا مواجه شد. لطفا دوباره تلاش کنید.",
		GenericError:       "خطایی رخ داد. لطفا دوباره /start را بزنید.",
	}
}

// WithDefaults fills empty fields from DefaultTexts.
func (t Texts) WithDefaults() Texts {
	d := DefaultTexts()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&t.Greeting, d.Greeting)
	fill(&t.OnchainButton, d.OnchainButton)
	fill(&t.LightningButton, d.LightningButton)
	fill(&t.AmountPrompt, d.AmountPrompt)
	fill(&t.PaidButton, d.PaidButton)
	fill(&t.CardPrompt, d.CardPrompt)
	fill(&t.CardInvalid, d.CardInvalid)
	fill(&t.CardAccepted, d.CardAccepted)
	fill(&t.InvoiceFailed, d.InvoiceFailed)
	fill(&t.PaymentNotReceived, d.PaymentNotReceived)
	fill(&t.PaymentCheckFailed, d.PaymentCheckFailed)
	fill(&t.GenericError, d.GenericError)
	return t
}
