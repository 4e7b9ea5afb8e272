// pkg/types/schema.go
package types

// Canonical field names of the output schema. The exchange publishes these
// attributes under Russian labels; the canonical schema is the fixed
// English-named field set every output row must contain.
const (
	FieldSecuritySymbol         = "Security Symbol"
	FieldISIN                   = "ISIN"
	FieldFullNameIssuer         = "Full Name Issuer"
	FieldRegistrationNumber     = "Registration Number"
	FieldSecurityCategory       = "Security Category"
	FieldSecurityIDCode         = "Security Identification Code"
	FieldCFICode                = "CFI code assigned to the securities"
	FieldCFICodeAtListing       = "CFI code as of the listing decision date"
	FieldSeriesNumber           = "Series Number"
	FieldFaceValue              = "Face Value"
	FieldFaceValueCurrency      = "Face Value Currency"
	FieldIssueSize              = "Issue Size, pcs"
	FieldIssueDate              = "Issue Date"
	FieldCoupon                 = "Coupon"
	FieldMaturityDate           = "Maturity Date"
	FieldCouponFrequency        = "Coupon Frequency"
	FieldInterestPaymentDates   = "Interest Payment Dates"
	FieldFirstPaymentDate       = "First Payment Date"
	FieldCurrentCouponInfo      = "Current Coupon Information (calculation method)"
	FieldRedemptionAmount       = "Redemption Amount"
	FieldEarlyRedemption        = "Early Redemption Option"
	FieldListingSection         = "Listing Section"
	FieldListingDecisionDate    = "Decision date to include in the List"
	FieldListingInclusionDate   = "Listing Inclusion Date"
	FieldListingExchange        = "Listing Exchange"
	FieldTradingStartDate       = "Start Date Organized Trading"
	FieldTradingModes           = "Available Trading Modes"
	FieldInstrumentGroup        = "Instrument Group"
	FieldLotSize                = "Lot Size"
	FieldPriceTick              = "Price Tick"
	FieldPriceQuotationUnits    = "Price Quotation Units"
	FieldSettlementCurrency     = "Settlement Currency"
	FieldTradingRestrictions    = "Trading Restrictions (incl. qualified investors)"
	FieldIndexUniverse          = "Included in the exchange index universe"
	FieldCountryIncorporation   = "Country Incorporation"
	FieldIssuerTIN              = "Issuer TIN"
	FieldLegalAddress           = "Legal Address"
	FieldDefaultEvents          = "Information Issuer Default Events"
	FieldTechnicalDefaultEvents = "Information Issuer Technical Default Events"
	FieldIRWebsite              = "Issuer's Investor Relations Website"
	FieldForeignDisclosurePage  = "Foreign Exchange Disclosure Page"
	FieldOAMDisclosurePage      = "Competent Authority/OAM Disclosure Page"
	FieldAnnualReports          = "Annual Reports Disclosed Issuer"
)

// CanonicalFields is the fixed column order of the reference-data output.
// Identifier columns come first, the rest follow the order of the exchange's
// securities card.
var CanonicalFields = []string{
	FieldSecuritySymbol,
	FieldISIN,
	FieldFullNameIssuer,
	FieldRegistrationNumber,
	FieldSecurityCategory,
	FieldSecurityIDCode,
	FieldCFICode,
	FieldCFICodeAtListing,
	FieldSeriesNumber,
	FieldFaceValue,
	FieldFaceValueCurrency,
	FieldIssueSize,
	FieldIssueDate,
	FieldCoupon,
	FieldMaturityDate,
	FieldCouponFrequency,
	FieldInterestPaymentDates,
	FieldFirstPaymentDate,
	FieldCurrentCouponInfo,
	FieldRedemptionAmount,
	FieldEarlyRedemption,
	FieldListingSection,
	FieldListingDecisionDate,
	FieldListingInclusionDate,
	FieldListingExchange,
	FieldTradingStartDate,
	FieldTradingModes,
	FieldInstrumentGroup,
	FieldLotSize,
	FieldPriceTick,
	FieldPriceQuotationUnits,
	FieldSettlementCurrency,
	FieldTradingRestrictions,
	FieldIndexUniverse,
	FieldCountryIncorporation,
	FieldIssuerTIN,
	FieldLegalAddress,
	FieldDefaultEvents,
	FieldTechnicalDefaultEvents,
	FieldIRWebsite,
	FieldForeignDisclosurePage,
	FieldOAMDisclosurePage,
	FieldAnnualReports,
}

// NewBondRecord returns a record with every canonical field present and
// empty. Normalization fills fields in; absent source data leaves "".
func NewBondRecord() BondRecord {
	rec := make(BondRecord, len(CanonicalFields))
	for _, f := range CanonicalFields {
		rec[f] = ""
	}
	return rec
}
