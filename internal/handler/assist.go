package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/biso/functions/internal/apperr"
	"github.com/biso/functions/internal/fx"
	"github.com/biso/functions/internal/llm"
)

// TranslateResult is a translated text.
type TranslateResult struct {
	TranslatedText string `json:"translatedText"`
}

// GPTTranslate translates text between two languages.
func GPTTranslate(ctx context.Context, d *Deps, req Request) (any, error) {
	if err := methodPost(req); err != nil {
		return nil, err
	}
	var r llm.Translation
	if err := req.Decode(&r); err != nil {
		return nil, err
	}
	if err := missing(
		required("source_lang", r.SourceLang != ""),
		required("target_lang", r.TargetLang != ""),
		required("text", r.Text != ""),
	); err != nil {
		return nil, err
	}

	text, err := d.LLM.Translate(ctx, r.Text, r.SourceLang, r.TargetLang)
	if err != nil {
		return nil, fmt.Errorf("failed to translate text: %w", err)
	}
	return TranslateResult{TranslatedText: text}, nil
}

// ReceiptResult is an extracted receipt. Foreign currency receipts also
// carry the NOK rate of the receipt date and the converted amount; both are
// null when no rate could be found.
type ReceiptResult struct {
	llm.Receipt
	ExchangeRate *float64
	NOKAmount    *float64
	converted    bool
}

// MarshalJSON writes exchangeRate and nokAmount only for converted
// receipts, as null when no rate was found.
func (r ReceiptResult) MarshalJSON() ([]byte, error) {
	if !r.converted {
		return json.Marshal(r.Receipt)
	}
	return json.Marshal(struct {
		llm.Receipt
		ExchangeRate *float64 `json:"exchangeRate"`
		NOKAmount    *float64 `json:"nokAmount"`
	}{r.Receipt, r.ExchangeRate, r.NOKAmount})
}

// ExtractReceipt reads the fields of a receipt from its text and converts
// foreign amounts to NOK at the rate of the receipt date.
func ExtractReceipt(ctx context.Context, d *Deps, req Request) (any, error) {
	text, err := req.Text()
	if err != nil {
		return nil, err
	}
	if text == "" {
		return nil, apperr.Validation("no text found in the request body")
	}

	receipt, err := d.LLM.ExtractReceipt(ctx, text)
	if err != nil {
		return nil, err
	}
	res := ReceiptResult{Receipt: receipt}
	if receipt.Currency == fx.Base || receipt.Date == "" {
		return res, nil
	}

	res.converted = true
	rate, err := d.FX.Rate(ctx, receipt.Date, receipt.Currency)
	if err != nil {
		d.Log.WarnContext(ctx, "exchange rate unavailable", "currency", receipt.Currency, "date", receipt.Date, "error", err)
		return res, nil
	}
	nok := receipt.Amount * rate
	res.ExchangeRate, res.NOKAmount = &rate, &nok
	return res, nil
}

// ExpenseDescription writes one description for an expense from the
// descriptions of its receipts and an optional event name.
func ExpenseDescription(ctx context.Context, d *Deps, req Request) (any, error) {
	var in llm.ExpenseInput
	if err := req.Decode(&in); err != nil {
		return nil, err
	}
	if err := missing(required("descriptions", len(in.Descriptions) > 0)); err != nil {
		return nil, err
	}
	return d.LLM.DescribeExpense(ctx, in)
}
