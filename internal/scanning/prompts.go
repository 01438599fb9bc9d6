package scanning

import "strings"

// ocrPrompt asks a vision model for a plain transcription of the receipt.
const ocrPrompt = `You are reading a photographed receipt. Transcribe every line of printed text exactly as it appears, top to bottom, one receipt line per output line.

Important:
- Keep numbers, prices, dates, times, codes and punctuation exactly as printed
- Keep item lines together with their prices on the same line
- Do not summarize, translate or correct anything
- Do not add any commentary and do not use markdown`

// structurePrompt asks a model to turn receipt text into the JSON layout
// understood by the analysis package.
const structurePrompt = `Analyze this receipt text and extract ALL information in JSON format, paying particular attention to DATES and TIMES.

Return ONLY a JSON object with this exact structure:
{
  "merchant": {
    "name": "Store name (clean, proper case)",
    "address": "Full address if available",
    "city": "City name if found",
    "state": "State/Province code (US: CA, TX, NY, ... | Canada: ON, BC, QC, ...) if found",
    "zip_code": "Zip/Postal code if found",
    "phone": "Phone number if available"
  },
  "transaction": {
    "date": "YYYY-MM-DD if found",
    "time": "HH:MM:SS if found",
    "subtotal": 0.00,
    "tax_amount": 0.00,
    "total_amount": 0.00,
    "payment_method": "cash/debit/credit if found"
  },
  "items": [
    {
      "receipt_name": "Exact name as written on the receipt",
      "standard_name": "Simplified, standardized product name",
      "price": 0.00,
      "quantity": 1,
      "category": "One of the categories below"
    }
  ]
}

Rules:
1. Dates may be printed as MM/DD/YYYY, MM/DD/YY, DD/MM/YYYY, YYYY-MM-DD, Month DD YYYY, DD-MM-YYYY or DD.MM.YYYY. Look near "Date:", "Receipt Date:" and timestamp lines. Always answer YYYY-MM-DD.
2. Times may be printed as HH:MM:SS, HH:MM or HH:MM AM/PM. Always answer HH:MM:SS in 24-hour time.
3. Leave out words like "STORE #123" from the merchant name. US addresses look like "City, ST 12345", Canadian ones like "City, ON M6J 1X5".
4. Remove item codes and SKUs from receipt_name. For "7053275 BIG 42 Inch LED TV N" use receipt_name "BIG 42 Inch LED TV" and standard_name "LED TV".
5. Category must be one of: {{categories}}.
6. All amounts are numbers, not strings. Discounts and coupons are not items.
7. Use null for anything that is not on the receipt.

Receipt text:
`

func structureRequest(receiptText string, categories []string) string {
	return strings.ReplaceAll(structurePrompt, "{{categories}}", strings.Join(categories, ", ")) + receiptText
}
