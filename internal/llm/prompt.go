package llm

import "strings"

const promptTemplate = `Sei un assistente che estrae dati da preventivi italiani indirizzati a enti pubblici.
Leggi il testo del preventivo e rispondi SOLO con un oggetto JSON valido, senza commenti.

TESTO PREVENTIVO:
{TEXT}

Numeri: nel testo trovi cifre in formato italiano ("2.101,50"); nel JSON scrivile con il punto decimale (2101.50).
Ometti i campi che non trovi.

Struttura attesa:
{
  "fornitore": {
    "ragioneSociale": "Acme S.r.l.",
    "partitaIva": "12345678901",
    "codiceFiscale": "12345678901",
    "indirizzo": "Via Roma, 10\n46100 Mantova (MN)",
    "email": "info@acme.it",
    "pec": "acme@pec.it",
    "telefono": "0376 123456"
  },
  "oggetto": "breve descrizione dell'affidamento",
  "tipoAffidamento": "fornitura | servizi | lavori",
  "numeroPreventivo": "numero assegnato dal fornitore",
  "numeroProtocollo": "numero dopo \"Reg. nr.\", zeri iniziali compresi (es. 0005229/2025)",
  "dataProtocollo": "data dopo il numero di protocollo, GG/MM/AAAA",
  "vociPreventivo": [
    {"descrizione": "Notebook", "quantita": 5, "prezzoUnitario": 800.00, "iva": 22}
  ],
  "importoImponibile": 4000.00,
  "importoIva": 880.00,
  "importoTotale": 4880.00,
  "note": "condizioni particolari"
}

Per le voci indica solo il prezzo unitario IVA esclusa.`

func BuildPrompt(text string) string {
	return strings.Replace(promptTemplate, "{TEXT}", strings.TrimSpace(text), 1)
}
