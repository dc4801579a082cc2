// Package ofx reads OFX/QFX bank and credit card statements into financial
// record inputs. Credits become revenue and debits become expenses.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/Veraticus/bizpilot/internal/common"
	"github.com/Veraticus/bizpilot/internal/model"
)

// amountPrecision is the number of decimal places kept when converting the
// statement's rational amount; rounding to minor units happens later.
const amountPrecision = 4

const (
	defaultRevenueCategory = "income"
	defaultExpenseCategory = "uncategorized"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// An opening tag at the end of a line with its closing bracket missing.
	tagFixRegex = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// Entry is one statement transaction converted to a record input.
type Entry struct {
	Input model.FinancialRecordInput
	// FITID is the institution's transaction id, unique per statement account.
	FITID string
	// StatementAccount is the bank or card account number the entry came from.
	StatementAccount string
	TrnType          string
}

// Parser implements OFX/QFX file parsing.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: common.OrDefault(logger)}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	// SEVERITY must be INFO, WARN or ERROR; some banks send mixed case.
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// ParseFile parses an OFX/QFX file. Zero-amount transactions are skipped.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader) ([]Entry, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse OFX file: %w", common.ErrValidation, err)
	}

	var entries []Entry
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			entries = append(entries, p.convertList(stmt.BankTranList, string(stmt.BankAcctFrom.AcctID))...)
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			entries = append(entries, p.convertList(stmt.BankTranList, string(stmt.CCAcctFrom.AcctID))...)
		}
	}

	p.logger.Info("Parsed OFX file",
		"entries", len(entries),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return entries, nil
}

func (p *Parser) convertList(list *ofxgo.TransactionList, statementAccount string) []Entry {
	if list == nil {
		return nil
	}
	entries := make([]Entry, 0, len(list.Transactions))
	for _, ofxTx := range list.Transactions {
		entry, ok := p.convertTransaction(ofxTx, statementAccount)
		if !ok {
			p.logger.Debug("Skipping zero-amount transaction", "fitid", ofxTx.FiTID, "account", statementAccount)
			continue
		}
		entries = append(entries, entry)
	}
	return entries
}

// convertTransaction maps a signed OFX amount onto a positive record amount
// with a direction.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, statementAccount string) (Entry, bool) {
	amount := decimal.NewFromBigRat(&ofxTx.TrnAmt.Rat, amountPrecision)
	if amount.IsZero() {
		return Entry{}, false
	}

	trnType := ofxTx.TrnType.String()
	recordType := model.RecordExpense
	if amount.IsPositive() {
		recordType = model.RecordRevenue
	}

	description := p.extractMerchantName(ofxTx)
	if ofxTx.CheckNum != "" && !strings.Contains(description, string(ofxTx.CheckNum)) {
		description = fmt.Sprintf("%s (check %s)", description, ofxTx.CheckNum)
	}

	entry := Entry{
		FITID:            string(ofxTx.FiTID),
		StatementAccount: statementAccount,
		TrnType:          trnType,
		Input: model.FinancialRecordInput{
			Type:        recordType,
			Category:    categoryFor(trnType, recordType),
			Description: description,
			Amount:      amount.Abs(),
		},
	}
	if !ofxTx.DtPosted.IsZero() {
		entry.Input.Date = &model.Date{Time: ofxTx.DtPosted.UTC()}
	}
	return entry, true
}

// categoryFor infers a category from the transaction type. OFX carries no
// categories of its own.
func categoryFor(trnType string, recordType model.RecordType) string {
	switch trnType {
	case "INT", "DIV":
		return "interest"
	case "FEE", "SRVCHG":
		return "bank fees"
	case "ATM", "CASH":
		return "cash"
	case "CHECK":
		return "checks"
	}
	if recordType == model.RecordRevenue {
		return defaultRevenueCategory
	}
	return defaultExpenseCategory
}

// extractMerchantName tries to get a clean merchant name from OFX data.
func (p *Parser) extractMerchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)

	// MEMO sometimes has better merchant info than a generic NAME.
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"ACH CREDIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}

	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"DEPOSIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
