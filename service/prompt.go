package service

const (
	extractorName = "Real Estate Data Extractor"

	extractorInstructions = `You are an expert data extractor. Extract structured JSON data from the attached German real estate PDF ("Teilungserklärung"). Pay close attention to the requested JSON schema.`

	// Field names and enum values must stay in sync with model.LegalData.
	extractionPrompt = `Extract the property details, buildings and units from the attached declaration of division and return them as a single JSON object with exactly this structure:

{
  "property": {
    "name": "string",
    "propertyNumber": "string",
    "managementType": "WEG" | "MV",
    "propertyManager": "string",
    "accountant": "string"
  },
  "buildings": [
    {
      "name": "string",
      "street": "string",
      "houseNumber": "string",
      "zipCode": "string",
      "city": "string"
    }
  ],
  "units": [
    {
      "unitNumber": "string",
      "unitType": "Apartment" | "Office" | "Garden" | "Parking",
      "floor": "string",
      "entrance": "string",
      "sizeM2": number,
      "coOwnershipShare": "string",
      "roomCount": number,
      "constructionYear": number | null,
      "buildingIndex": number
    }
  ]
}

"buildingIndex" is the zero-based position of the unit's building in the "buildings" array.

For "entrance": if the document names an entrance for the unit such as "Eingang A" or "separater Eingang B", use that text. Otherwise use "Haupteingang".

Do not include markdown formatting (like ` + "```json" + `). Just the raw JSON string.`
)
