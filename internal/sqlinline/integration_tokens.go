package sqlinline

const QSelectIntegrationToken = `--sql 67bb5658-5113-440b-a71c-8b0d59d6a549
select token
from integration_tokens
where provider = $1::text
limit 1;
`

const QUpsertIntegrationToken = `--sql b26d5767-7721-4bd3-8132-09049263cf33
insert into integration_tokens (id, provider, token, properties, created_at, updated_at)
values (gen_random_uuid(), $1::text, $2::text, coalesce($3::jsonb, '{}'::jsonb), now(), now())
on conflict (provider) do update set
    token = excluded.token,
    properties = excluded.properties,
    updated_at = now();
`

const QDeleteIntegrationToken = `--sql a514acc9-e5ee-4780-84c0-38a0609bfd33
delete from integration_tokens
where provider = $1::text;
`
