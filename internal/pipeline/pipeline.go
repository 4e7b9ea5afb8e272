// Package pipeline turns raw listing records and detail-page fields into
// canonical bond records via a declarative label mapping.
package pipeline

import (
	"strings"

	"github.com/akulagin/spbebonds/pkg/types"
)

// transform identifies the special value handling a mapped field receives.
type transform int

const (
	transformNone transform = iota
	transformBoolean
	transformCouponFrequency
	transformPaymentDates
)

// fieldRule binds one Russian card label to its canonical field and value
// transform.
type fieldRule struct {
	label     string
	canonical string
	transform transform
}

// fieldRules is the complete label mapping of the exchange's security card.
// Adding a column means adding one rule here and one canonical field to the
// schema; no code changes elsewhere.
var fieldRules = []fieldRule{
	{label: "ISIN код", canonical: types.FieldISIN},
	{label: "Регистрационный номер", canonical: types.FieldRegistrationNumber},
	{label: "Вид, категория (тип) ценной бумаги", canonical: types.FieldSecurityCategory},
	{label: "Идентификационный код ценной бумаги", canonical: types.FieldSecurityIDCode},
	{label: "Международный код классификации финансовых инструментов (CFI), присвоенный ценным бумагам", canonical: types.FieldCFICode},
	{label: "Международный код классификации финансовых инструментов (CFI), присвоенный ценным бумагам на дату принятия решения о листинге ценных бумаг", canonical: types.FieldCFICodeAtListing},
	{label: "Номер серии", canonical: types.FieldSeriesNumber},
	{label: "Номинальная стоимость", canonical: types.FieldFaceValue},
	{label: "Валюта номинальной стоимости", canonical: types.FieldFaceValueCurrency},
	{label: "Общее количество ценных бумаг в выпуске, шт.", canonical: types.FieldIssueSize},
	{label: "Дата выпуска", canonical: types.FieldIssueDate},
	{label: "Ставка купона", canonical: types.FieldCoupon},
	{label: "Дата погашения", canonical: types.FieldMaturityDate},
	{label: "Порядок выплаты процентов", canonical: types.FieldCouponFrequency, transform: transformCouponFrequency},
	{label: "Даты выплаты процентов", canonical: types.FieldInterestPaymentDates, transform: transformPaymentDates},
	{label: "Информация о размере текущего процента (купона) по облигациям (о порядке определения размера)", canonical: types.FieldCurrentCouponInfo},
	{label: "Сумма погашения", canonical: types.FieldRedemptionAmount},
	{label: "Указание на наличие возможности досрочного погашения облигаций", canonical: types.FieldEarlyRedemption, transform: transformBoolean},
	{label: "Раздел Списка", canonical: types.FieldListingSection},
	{label: "Дата принятия решения о включении ценных бумаг в Список", canonical: types.FieldListingDecisionDate},
	{label: "Дата включения ценных бумаг в Список", canonical: types.FieldListingInclusionDate},
	{label: "Биржа, на которой ценные бумаги эмитента прошли процедуру листинга", canonical: types.FieldListingExchange},
	{label: "Дата начала организованных торгов", canonical: types.FieldTradingStartDate},
	{label: "Режимы торгов, в которых возможно заключение договоров", canonical: types.FieldTradingModes},
	{label: "Группа инструментов", canonical: types.FieldInstrumentGroup},
	{label: "Лот", canonical: types.FieldLotSize},
	{label: "Шаг цены", canonical: types.FieldPriceTick},
	{label: "Валюта цены", canonical: types.FieldPriceQuotationUnits},
	{label: "Валюта расчетов", canonical: types.FieldSettlementCurrency},
	{label: "Указание на то, что ценные бумаги ограничены в обороте (в том числе предназначены для квалифицированных инвесторов)", canonical: types.FieldTradingRestrictions, transform: transformBoolean},
	{label: "Указание на то, что ценные бумаги включены в базу расчета индексов организатора торговли", canonical: types.FieldIndexUniverse, transform: transformBoolean},
	{label: "Полное наименование эмитента", canonical: types.FieldFullNameIssuer},
	{label: "Государство учреждения эмитента", canonical: types.FieldCountryIncorporation},
	{label: "Идентификационный номер налогоплательщика эмитента (при наличии)", canonical: types.FieldIssuerTIN},
	{label: "Юридический адрес эмитента", canonical: types.FieldLegalAddress},
	{label: "Информация о фактах дефолта эмитента", canonical: types.FieldDefaultEvents},
	{label: "Информация о фактах технического дефолта эмитента", canonical: types.FieldTechnicalDefaultEvents},
	{label: "Адрес страницы сайта в сети Интернет, используемой для раскрытия информации для инвесторов", canonical: types.FieldIRWebsite},
	{label: "Адрес страницы иностранной биржи в сети Интернет, на которой раскрывается информация об эмитенте иностранных ценных бумаг и о ценных бумагах данного эмитента", canonical: types.FieldForeignDisclosurePage},
	{label: "Адрес страницы государственного органа, и/или уполномоченного лица в сети Интернет, на которой раскрывается информация об эмитенте иностранных ценных бумаг и о ценных бумагах данного эмитента", canonical: types.FieldOAMDisclosurePage},
	{label: "Годовые отчеты, раскрытые эмитентом", canonical: types.FieldAnnualReports},
}

// Raw listing payload field names.
const (
	rawKeySymbol = "srtsCode"
	rawKeyISIN   = "sisinCode"
	rawKeyIssuer = "fullName"
)

// Normalize builds a canonical bond record from a raw listing record and the
// labeled fields of its detail page. Every canonical field is present in the
// result; attributes absent from both sources stay empty.
func Normalize(listing types.RawRecord, detailFields map[string]string) types.BondRecord {
	rec := types.NewBondRecord()

	rec[types.FieldSecuritySymbol] = NormalizeText(listing.String(rawKeySymbol))
	rec[types.FieldISIN] = NormalizeText(listing.String(rawKeyISIN))
	rec[types.FieldFullNameIssuer] = NormalizeText(listing.String(rawKeyIssuer))

	for _, rule := range fieldRules {
		value := NormalizeText(lookupLabel(detailFields, rule.label))

		switch rule.transform {
		case transformBoolean:
			rec[rule.canonical] = ParseBoolean(value)
		case transformCouponFrequency:
			rec[rule.canonical] = ParseCouponFrequency(value)
		case transformPaymentDates:
			dates, firstDate := ParseInterestPaymentDates(value)
			rec[rule.canonical] = dates
			rec[types.FieldFirstPaymentDate] = firstDate
		default:
			if value != "" {
				rec[rule.canonical] = value
			}
		}
	}

	// The listing identifiers win over the card when both carry a value.
	if isin := NormalizeText(listing.String(rawKeyISIN)); isin != "" {
		rec[types.FieldISIN] = isin
	}
	if issuer := NormalizeText(listing.String(rawKeyIssuer)); issuer != "" {
		rec[types.FieldFullNameIssuer] = issuer
	}

	return rec
}

// lookupLabel finds a card value by its label, tolerating label prefixes:
// cards occasionally append footnote markers to the label text.
func lookupLabel(fields map[string]string, label string) string {
	if v, ok := fields[label]; ok {
		return v
	}
	for k, v := range fields {
		if strings.HasPrefix(k, label) {
			return v
		}
	}
	return ""
}

// IsBond reports whether a security category value describes a bond. Detail
// pages are shared with other instrument types that must be skipped.
func IsBond(category string) bool {
	lower := strings.ToLower(category)
	return strings.Contains(lower, "облигац") || strings.Contains(lower, "bond")
}
