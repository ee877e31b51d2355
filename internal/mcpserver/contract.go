package mcpserver

// PageFormatContract describes the canonical page file format that LLM
// consumers should follow when creating pages.
const PageFormatContract = `# notenest Page Format Contract

Every page is one Markdown file named after its slug (` + "`" + `recipes/curry` + "`" + ` is
stored as ` + "`" + `recipes/curry.md` + "`" + `). The file starts with a YAML field block.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – defaults to the first "# " heading, then the slug
tags:                               # OPTIONAL – YAML list; deduplicated and sorted
  - tag-one
  - tag-two
metadata_type: default              # OPTIONAL – selects the plugin schema for custom fields
custom_fields:                      # OPTIONAL – validated against the metadata_type schema
  key: value
---

Body text in standard Markdown.

Use [[wikilinks]] to reference other pages by slug.
Use [[display text|target]] when the shown text differs from the target.
` + "```" + `

## Rules

1. **The field block comes first.** The ` + "`" + `---` + "`" + ` fence must open the file.
   Text without a valid block is indexed whole as the body.
2. **Slugs** are slash separated, without ` + "`" + `.md` + "`" + `, and may not contain ` + "`" + `..` + "`" + `
   segments or start with a dot.
3. **Wikilinks** target slugs: ` + "`" + `[[folder/page]]` + "`" + `. Links to pages that do not exist
   yet are kept as dangling links and resolve once the page is created.
4. **created** and **updated** are maintained by notenest; values you supply are replaced.
5. **Custom fields** of a typed page are checked against its schema. The ` + "`" + `recipe` + "`" + `
   type requires ` + "`" + `ingredients` + "`" + ` (list) and ` + "`" + `cooking_time` + "`" + ` (int, at least 1);
   ` + "`" + `difficulty` + "`" + ` is one of easy, medium, hard; ` + "`" + `rating` + "`" + ` is between 0 and 5.
   Missing fields receive their defaults. Use the ` + "`" + `/plugins` + "`" + ` endpoint for every schema.
6. **Encoding** is UTF-8.

## Example

` + "```" + `markdown
---
title: Green curry
tags:
  - dinner
  - thai
metadata_type: recipe
custom_fields:
  ingredients:
    - coconut milk
    - curry paste
  cooking_time: 25
  difficulty: easy
---

Serve with [[rice|recipes/jasmine-rice]].
` + "```" + `
`
